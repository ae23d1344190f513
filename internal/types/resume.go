package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EmbeddingStatusPending    = "pending"
	EmbeddingStatusProcessing = "processing"
	EmbeddingStatusCompleted  = "completed"
	EmbeddingStatusFailed     = "failed"
)

type Resume struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CandidateName  string         `gorm:"column:candidate_name;not null;index" json:"candidate_name"`
	Email          string         `gorm:"column:email" json:"email,omitempty"`
	Phone          string         `gorm:"column:phone" json:"phone,omitempty"`
	FileName       string         `gorm:"column:file_name;not null" json:"file_name"`
	RawText        string         `gorm:"column:raw_text;not null" json:"-"`
	PositionTag    string         `gorm:"column:position_tag;index" json:"position_tag,omitempty"`
	SectionsCount  int            `gorm:"column:sections_count;not null;default:0" json:"sections_count"`
	EmbeddingStatus string        `gorm:"column:embedding_status;not null;default:'pending'" json:"embedding_status"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Resume) TableName() string { return "resume" }
