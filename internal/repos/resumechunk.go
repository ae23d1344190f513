package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

type ResumeChunkRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chunks []*types.ResumeChunk) ([]*types.ResumeChunk, error)
	GetByResumeID(ctx context.Context, tx *gorm.DB, resumeID uuid.UUID) ([]*types.ResumeChunk, error)
	DeleteByResumeID(ctx context.Context, tx *gorm.DB, resumeID uuid.UUID) error
}

type resumeChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResumeChunkRepo(db *gorm.DB, baseLog *logger.Logger) ResumeChunkRepo {
	return &resumeChunkRepo{db: db, log: baseLog.With("repo", "ResumeChunkRepo")}
}

func (r *resumeChunkRepo) Create(ctx context.Context, tx *gorm.DB, chunks []*types.ResumeChunk) ([]*types.ResumeChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(chunks) == 0 {
		return []*types.ResumeChunk{}, nil
	}

	// Keep batches small because Text is large
	const batchSize = 100

	if err := transaction.WithContext(ctx).CreateInBatches(chunks, batchSize).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *resumeChunkRepo) GetByResumeID(ctx context.Context, tx *gorm.DB, resumeID uuid.UUID) ([]*types.ResumeChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ResumeChunk
	if err := transaction.WithContext(ctx).
		Where("resume_id = ?", resumeID).
		Order("section_type ASC, chunk_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *resumeChunkRepo) DeleteByResumeID(ctx context.Context, tx *gorm.DB, resumeID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("resume_id = ?", resumeID).
		Delete(&types.ResumeChunk{}).Error
}
