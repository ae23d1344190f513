package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coders-clan/cv-rag-agent/internal/clients/voyage"
	"github.com/coders-clan/cv-rag-agent/internal/ingestion/extractor"
	"github.com/coders-clan/cv-rag-agent/internal/ingestion/segmenter"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/errs"
	"github.com/coders-clan/cv-rag-agent/internal/repos"
	"github.com/coders-clan/cv-rag-agent/internal/retrieval"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

type ResumeService interface {
	// Ingest segments and persists one resume, then embeds and indexes
	// its chunks in the background.
	Ingest(ctx context.Context, fileName, text, positionTag string) (*types.Resume, error)
	List(ctx context.Context, positionTag string) ([]*types.Resume, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Resume, error)
	// Delete removes the resume, its chunks and its vectors.
	Delete(ctx context.Context, id uuid.UUID) error
}

type ResumeConfig struct {
	MaxChunkChars int
	OverlapChars  int
	EmbedTimeout  time.Duration
}

type resumeService struct {
	db       *gorm.DB
	log      *logger.Logger
	resumes  repos.ResumeRepo
	chunks   repos.ResumeChunkRepo
	embedder retrieval.Embedder
	store    retrieval.Store
	cfg      ResumeConfig
}

func NewResumeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	resumeRepo repos.ResumeRepo,
	chunkRepo repos.ResumeChunkRepo,
	embedder retrieval.Embedder,
	store retrieval.Store,
	cfg ResumeConfig,
) ResumeService {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = segmenter.DefaultMaxChunkChars
	}
	if cfg.OverlapChars < 0 {
		cfg.OverlapChars = segmenter.DefaultOverlapChars
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 5 * time.Minute
	}
	return &resumeService{
		db:       db,
		log:      baseLog.With("service", "ResumeService"),
		resumes:  resumeRepo,
		chunks:   chunkRepo,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}
}

func (s *resumeService) Ingest(ctx context.Context, fileName, text, positionTag string) (*types.Resume, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: resume text is empty", errs.ErrInvalidArgument)
	}
	positionTag = strings.TrimSpace(positionTag)

	info := extractor.ExtractCandidateInfo(text)
	pieces := segmenter.Segment(text, s.cfg.MaxChunkChars, s.cfg.OverlapChars)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: no chunkable content", errs.ErrInvalidArgument)
	}

	sections := map[string]bool{}
	for _, p := range pieces {
		sections[p.SectionType] = true
	}

	resume := &types.Resume{
		CandidateName:   info.Name,
		Email:           info.Email,
		Phone:           info.Phone,
		FileName:        fileName,
		RawText:         text,
		PositionTag:     positionTag,
		SectionsCount:   len(sections),
		EmbeddingStatus: types.EmbeddingStatusPending,
	}

	var chunks []*types.ResumeChunk
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.resumes.Create(ctx, tx, resume)
		if err != nil {
			return fmt.Errorf("create resume: %w", err)
		}
		resume = created

		chunks = make([]*types.ResumeChunk, 0, len(pieces))
		for _, p := range pieces {
			chunks = append(chunks, &types.ResumeChunk{
				ResumeID:    resume.ID,
				SectionType: p.SectionType,
				ChunkIndex:  p.ChunkIndex,
				Text:        p.Text,
				PositionTag: positionTag,
			})
		}
		if _, err := s.chunks.Create(ctx, tx, chunks); err != nil {
			return fmt.Errorf("create chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Resume ingested",
		"resume_id", resume.ID,
		"candidate", resume.CandidateName,
		"chunks", len(chunks),
	)

	go s.embedAndIndex(resume, chunks)

	return resume, nil
}

// embedAndIndex runs detached from the upload request: embedding a
// resume can take far longer than the client should wait.
func (s *resumeService) embedAndIndex(resume *types.Resume, chunks []*types.ResumeChunk) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.EmbedTimeout)
	defer cancel()

	setStatus := func(status string) {
		if err := s.resumes.UpdateFields(ctx, nil, resume.ID, map[string]any{"embedding_status": status}); err != nil {
			s.log.Error("Failed to update embedding status", "resume_id", resume.ID, "status", status, "error", err)
		}
	}
	setStatus(types.EmbeddingStatusProcessing)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts, voyage.InputTypeDocument)
	if err != nil {
		s.log.Error("Embedding failed", "resume_id", resume.ID, "error", err)
		setStatus(types.EmbeddingStatusFailed)
		return
	}
	if err := s.store.UpsertResumeChunks(ctx, resume, chunks, vectors); err != nil {
		s.log.Error("Vector upsert failed", "resume_id", resume.ID, "error", err)
		setStatus(types.EmbeddingStatusFailed)
		return
	}

	setStatus(types.EmbeddingStatusCompleted)
	s.log.Info("Resume embedded and indexed", "resume_id", resume.ID, "vectors", len(vectors))
}

func (s *resumeService) List(ctx context.Context, positionTag string) ([]*types.Resume, error) {
	return s.resumes.List(ctx, nil, positionTag)
}

func (s *resumeService) Get(ctx context.Context, id uuid.UUID) (*types.Resume, error) {
	return s.resumes.GetByID(ctx, nil, id)
}

func (s *resumeService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.resumes.GetByID(ctx, nil, id); err != nil {
		return err
	}

	if err := s.store.DeleteResume(ctx, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.chunks.DeleteByResumeID(ctx, tx, id); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if err := s.resumes.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("delete resume: %w", err)
		}
		return nil
	})
}
