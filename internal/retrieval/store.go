package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/coders-clan/cv-rag-agent/internal/clients/pinecone"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

// Hit is one raw vector-search match.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Store owns the embedded-chunk index: vector ids, metadata shape and
// the index host are private to it.
type Store interface {
	UpsertResumeChunks(ctx context.Context, resume *types.Resume, chunks []*types.ResumeChunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]Hit, error)
	DeleteResume(ctx context.Context, resumeID uuid.UUID) error
}

type store struct {
	log       *logger.Logger
	pc        pinecone.Client
	host      string
	namespace string
}

func NewStore(log *logger.Logger, pc pinecone.Client, indexName, namespace string) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}

	desc, err := pc.DescribeIndex(context.Background(), indexName)
	if err != nil {
		return nil, fmt.Errorf("describe index %q: %w", indexName, err)
	}

	return &store{
		log:       log.With("service", "VectorStore"),
		pc:        pc,
		host:      desc.Host,
		namespace: namespace,
	}, nil
}

func vectorID(resumeID uuid.UUID, sectionType string, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%d", resumeID, sectionType, chunkIndex)
}

func (s *store) UpsertResumeChunks(ctx context.Context, resume *types.Resume, chunks []*types.ResumeChunk, vectors [][]float32) error {
	if resume == nil {
		return fmt.Errorf("resume required")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return nil
	}

	items := make([]pinecone.Vector, 0, len(chunks))
	for i, chunk := range chunks {
		items = append(items, pinecone.Vector{
			ID:     vectorID(resume.ID, chunk.SectionType, chunk.ChunkIndex),
			Values: vectors[i],
			Metadata: map[string]any{
				"resume_id":      resume.ID.String(),
				"candidate_name": resume.CandidateName,
				"section_type":   chunk.SectionType,
				"chunk_index":    chunk.ChunkIndex,
				"file_name":      resume.FileName,
				"position_tag":   chunk.PositionTag,
				"text":           chunk.Text,
			},
		})
	}

	resp, err := s.pc.UpsertVectors(ctx, s.host, pinecone.UpsertRequest{
		Vectors:   items,
		Namespace: s.namespace,
	})
	if err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	s.log.Debug("Upserted resume vectors",
		"resume_id", resume.ID,
		"count", resp.UpsertedCount,
	)
	return nil
}

func (s *store) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]Hit, error) {
	filter := map[string]any{}
	for k, v := range filters {
		if strings.TrimSpace(v) == "" {
			continue
		}
		filter[k] = map[string]any{"$eq": v}
	}
	if len(filter) == 0 {
		filter = nil
	}

	resp, err := s.pc.Query(ctx, s.host, pinecone.QueryRequest{
		Namespace:       s.namespace,
		Vector:          vector,
		TopK:            topK,
		Filter:          filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		hits = append(hits, Hit{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return hits, nil
}

func (s *store) DeleteResume(ctx context.Context, resumeID uuid.UUID) error {
	err := s.pc.DeleteVectors(ctx, s.host, pinecone.DeleteRequest{
		Namespace: s.namespace,
		Filter: map[string]any{
			"resume_id": map[string]any{"$eq": resumeID.String()},
		},
	})
	if err != nil {
		return fmt.Errorf("delete resume vectors: %w", err)
	}
	return nil
}
