package types

import (
	"time"

	"github.com/google/uuid"
)

// ResumeChunk is one section-tagged slice of a resume. Chunks are
// immutable after ingestion and removed only with their resume.
type ResumeChunk struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ResumeID    uuid.UUID `gorm:"type:uuid;not null;index" json:"resume_id"`
	Resume      *Resume   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResumeID;references:ID" json:"resume,omitempty"`
	SectionType string    `gorm:"column:section_type;not null" json:"section_type"`
	ChunkIndex  int       `gorm:"column:chunk_index;not null" json:"chunk_index"`
	Text        string    `gorm:"column:text;not null" json:"text"`
	PositionTag string    `gorm:"column:position_tag" json:"position_tag,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ResumeChunk) TableName() string { return "resume_chunk" }
