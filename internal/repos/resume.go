package repos

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/errs"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

type ResumeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, resume *types.Resume) (*types.Resume, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Resume, error)
	List(ctx context.Context, tx *gorm.DB, positionTag string) ([]*types.Resume, error)
	FindByCandidateName(ctx context.Context, tx *gorm.DB, name string) (*types.Resume, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type resumeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResumeRepo(db *gorm.DB, baseLog *logger.Logger) ResumeRepo {
	return &resumeRepo{db: db, log: baseLog.With("repo", "ResumeRepo")}
}

func (r *resumeRepo) Create(ctx context.Context, tx *gorm.DB, resume *types.Resume) (*types.Resume, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if resume == nil {
		return nil, errs.ErrInvalidArgument
	}
	if err := transaction.WithContext(ctx).Create(resume).Error; err != nil {
		return nil, err
	}
	return resume, nil
}

func (r *resumeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Resume, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Resume
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *resumeRepo) List(ctx context.Context, tx *gorm.DB, positionTag string) ([]*types.Resume, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Resume
	q := transaction.WithContext(ctx).Order("created_at DESC")
	if strings.TrimSpace(positionTag) != "" {
		q = q.Where("position_tag = ?", strings.TrimSpace(positionTag))
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FindByCandidateName resolves a candidate by case-insensitive exact
// match first, then by prefix.
func (r *resumeRepo) FindByCandidateName(ctx context.Context, tx *gorm.DB, name string) (*types.Resume, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.ErrInvalidArgument
	}

	var result types.Resume
	err := transaction.WithContext(ctx).
		Where("LOWER(candidate_name) = LOWER(?)", name).
		First(&result).Error
	if err == nil {
		return &result, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = transaction.WithContext(ctx).
		Where("candidate_name ILIKE ?", name+"%").
		Order("candidate_name ASC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *resumeRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Resume{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *resumeRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Resume{}).Error
}
