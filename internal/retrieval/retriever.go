package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/coders-clan/cv-rag-agent/internal/clients/voyage"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/ctxutil"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/errs"
)

// Embedder is the subset of the Voyage client the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string, inputType voyage.InputType) ([][]float32, error)
}

// Filters restricts a search to exact metadata matches.
type Filters struct {
	PositionTag   string
	CandidateName string
}

// Result is one ranked retrieval match. Scores are comparable only
// within a single query's results.
type Result struct {
	ResumeID      string  `json:"resume_id"`
	CandidateName string  `json:"candidate_name"`
	SectionType   string  `json:"section_type"`
	ChunkIndex    int     `json:"chunk_index"`
	FileName      string  `json:"file_name"`
	PositionTag   string  `json:"position_tag,omitempty"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filters Filters) ([]Result, error)
}

type retriever struct {
	log      *logger.Logger
	embedder Embedder
	store    Store
}

func NewRetriever(log *logger.Logger, embedder Embedder, store Store) (Retriever, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("embedder and store required")
	}
	return &retriever{
		log:      log.With("service", "Retriever"),
		embedder: embedder,
		store:    store,
	}, nil
}

// Retrieve embeds the query in query mode, runs the filtered vector
// search and returns results ordered by descending score, ties broken
// by ascending chunk index. Collaborator failures come back as errors,
// never panics; an empty store yields an empty result slice.
func (r *retriever) Retrieve(ctx context.Context, query string, topK int, filters Filters) ([]Result, error) {
	ctx = ctxutil.Default(ctx)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.ErrInvalidArgument
	}
	if topK <= 0 {
		topK = 10
	}

	vecs, err := r.embedder.Embed(ctx, []string{query}, voyage.InputTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vecs))
	}

	filterMap := map[string]string{}
	if strings.TrimSpace(filters.PositionTag) != "" {
		filterMap["position_tag"] = strings.TrimSpace(filters.PositionTag)
	}
	if strings.TrimSpace(filters.CandidateName) != "" {
		filterMap["candidate_name"] = strings.TrimSpace(filters.CandidateName)
	}

	hits, err := r.store.Search(ctx, vecs[0], topK, filterMap)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, resultFromHit(h))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func resultFromHit(h Hit) Result {
	res := Result{Score: h.Score}
	if h.Metadata == nil {
		return res
	}
	res.ResumeID = metaString(h.Metadata, "resume_id")
	res.CandidateName = metaString(h.Metadata, "candidate_name")
	res.SectionType = metaString(h.Metadata, "section_type")
	res.FileName = metaString(h.Metadata, "file_name")
	res.PositionTag = metaString(h.Metadata, "position_tag")
	res.Text = metaString(h.Metadata, "text")
	if v, ok := h.Metadata["chunk_index"].(float64); ok {
		res.ChunkIndex = int(v)
	} else if v, ok := h.Metadata["chunk_index"].(int); ok {
		res.ChunkIndex = v
	}
	return res
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
