package services

import (
	"context"

	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/retrieval"
)

// SearchService exposes raw vector search as a debugging surface,
// bypassing the agent entirely.
type SearchService interface {
	Search(ctx context.Context, query string, topK int, positionTag string) ([]retrieval.Result, error)
}

type searchService struct {
	log       *logger.Logger
	retriever retrieval.Retriever
}

func NewSearchService(baseLog *logger.Logger, retriever retrieval.Retriever) SearchService {
	return &searchService{
		log:       baseLog.With("service", "SearchService"),
		retriever: retriever,
	}
}

func (s *searchService) Search(ctx context.Context, query string, topK int, positionTag string) ([]retrieval.Result, error) {
	results, err := s.retriever.Retrieve(ctx, query, topK, retrieval.Filters{PositionTag: positionTag})
	if err != nil {
		return nil, err
	}
	s.log.Debug("Debug search executed", "query", query, "results", len(results))
	return results, nil
}
