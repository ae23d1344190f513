package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/coders-clan/cv-rag-agent/internal/clients/anthropic"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/errs"
	"github.com/coders-clan/cv-rag-agent/internal/repos"
	"github.com/coders-clan/cv-rag-agent/internal/retrieval"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

const (
	ToolSearchResumes      = "search_resumes"
	ToolGetCandidateResume = "get_candidate_resume"
	ToolListCandidates     = "list_candidates"

	// snippetLimit bounds per-hit text in search results.
	snippetLimit = 500
)

// ToolDispatcher is the closed capability set the loop may invoke.
// Dispatch always returns a rendered result string: recoverable
// failures become descriptive text, never errors, because the model
// can only consume tool output as text.
type ToolDispatcher interface {
	Definitions() []anthropic.Tool
	Dispatch(ctx context.Context, name string, input json.RawMessage, positionTag string) string
}

type toolHandler func(ctx context.Context, input json.RawMessage, positionTag string) string

type Registry struct {
	log      *logger.Logger
	defs     []anthropic.Tool
	handlers map[string]toolHandler
}

func NewRegistry(log *logger.Logger, ret retrieval.Retriever, resumeRepo repos.ResumeRepo, chunkRepo repos.ResumeChunkRepo) (*Registry, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ret == nil || resumeRepo == nil || chunkRepo == nil {
		return nil, fmt.Errorf("retriever and repos required")
	}

	r := &Registry{
		log:      log.With("service", "ToolRegistry"),
		handlers: map[string]toolHandler{},
	}

	r.register(anthropic.Tool{
		Name:        ToolSearchResumes,
		Description: "Search resume chunks by semantic similarity to a query. Use this to find candidates or resume sections relevant to specific skills, experiences, or qualifications.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural-language search query describing the desired skills, experience, or qualifications.",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Maximum number of matching chunks to return (default 10).",
				},
				"position_tag": map[string]any{
					"type":        "string",
					"description": "Optional position tag to narrow results to resumes uploaded under a specific job posting.",
				},
			},
			"required": []string{"query"},
		},
	}, func(ctx context.Context, input json.RawMessage, positionTag string) string {
		return r.searchResumes(ctx, ret, input, positionTag)
	})

	r.register(anthropic.Tool{
		Name:        ToolGetCandidateResume,
		Description: "Retrieve and reconstruct the full resume for a specific candidate, organised by section. Use this to review a candidate's complete resume.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"candidate_name": map[string]any{
					"type":        "string",
					"description": "The name of the candidate whose resume should be retrieved.",
				},
			},
			"required": []string{"candidate_name"},
		},
	}, func(ctx context.Context, input json.RawMessage, positionTag string) string {
		return r.getCandidateResume(ctx, resumeRepo, chunkRepo, input)
	})

	r.register(anthropic.Tool{
		Name:        ToolListCandidates,
		Description: "List all candidates in the system with their resume metadata, optionally filtered by position tag. Use this to discover which candidates are available.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"position_tag": map[string]any{
					"type":        "string",
					"description": "Optional position tag to filter candidates by a specific job posting.",
				},
			},
		},
	}, func(ctx context.Context, input json.RawMessage, positionTag string) string {
		return r.listCandidates(ctx, resumeRepo, input, positionTag)
	})

	return r, nil
}

func (r *Registry) register(def anthropic.Tool, h toolHandler) {
	r.defs = append(r.defs, def)
	r.handlers[def.Name] = h
}

func (r *Registry) Definitions() []anthropic.Tool {
	out := make([]anthropic.Tool, len(r.defs))
	copy(out, r.defs)
	return out
}

// Dispatch runs one tool invocation. Unknown names and handler panics
// are converted to descriptive failure strings so a single bad
// invocation never aborts the conversation.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage, positionTag string) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Tool handler panicked", "tool", name, "panic", rec)
			result = fmt.Sprintf("Error executing tool '%s': internal failure", name)
		}
	}()

	h, ok := r.handlers[name]
	if !ok {
		r.log.Warn("Unknown tool requested", "tool", name)
		return fmt.Sprintf("Error: unknown tool '%s'. Available tools: %s, %s, %s.",
			name, ToolSearchResumes, ToolGetCandidateResume, ToolListCandidates)
	}
	return h(ctx, input, positionTag)
}

// -------------------- search_resumes --------------------

type searchInput struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k"`
	PositionTag string `json:"position_tag"`
}

func (r *Registry) searchResumes(ctx context.Context, ret retrieval.Retriever, input json.RawMessage, ambientTag string) string {
	var in searchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Sprintf("Error: invalid search_resumes arguments: %v", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "Error: search_resumes requires a non-empty query."
	}
	if in.TopK <= 0 {
		in.TopK = 10
	}
	tag := strings.TrimSpace(in.PositionTag)
	if tag == "" {
		tag = strings.TrimSpace(ambientTag)
	}

	results, err := ret.Retrieve(ctx, in.Query, in.TopK, retrieval.Filters{PositionTag: tag})
	if err != nil {
		r.log.Error("search_resumes failed", "error", err)
		return fmt.Sprintf("Error performing resume search: %v", err)
	}
	if len(results) == 0 {
		return "No matching resume chunks found for the given query."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching resume chunk(s):\n\n", len(results))
	for i, res := range results {
		snippet := res.Text
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit] + "..."
		}
		fmt.Fprintf(&b, "--- Result %d ---\nCandidate: %s\nSection:   %s\nScore:     %.4f\nText:\n%s\n\n",
			i+1, res.CandidateName, res.SectionType, res.Score, snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}

// -------------------- get_candidate_resume --------------------

type profileInput struct {
	CandidateName string `json:"candidate_name"`
}

func (r *Registry) getCandidateResume(ctx context.Context, resumeRepo repos.ResumeRepo, chunkRepo repos.ResumeChunkRepo, input json.RawMessage) string {
	var in profileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Sprintf("Error: invalid get_candidate_resume arguments: %v", err)
	}
	name := strings.TrimSpace(in.CandidateName)
	if name == "" {
		return "Error: get_candidate_resume requires a candidate_name."
	}

	resume, err := resumeRepo.FindByCandidateName(ctx, nil, name)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Sprintf("No resume found for candidate '%s'. Please check the name spelling or use the list_candidates tool to see available candidates.", name)
	}
	if err != nil {
		r.log.Error("get_candidate_resume lookup failed", "error", err)
		return fmt.Sprintf("Error looking up candidate: %v", err)
	}

	chunks, err := chunkRepo.GetByResumeID(ctx, nil, resume.ID)
	if err != nil {
		r.log.Error("get_candidate_resume chunk retrieval failed", "resume_id", resume.ID, "error", err)
		return fmt.Sprintf("Error retrieving resume chunks: %v", err)
	}
	if len(chunks) == 0 {
		return fmt.Sprintf("Resume record exists for '%s' but no chunks are stored yet (embedding may still be processing).", resume.CandidateName)
	}

	positionTag := resume.PositionTag
	if positionTag == "" {
		positionTag = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Resume for: %s\nFile:       %s\nPosition:   %s\nUploaded:   %s\n%s\n",
		resume.CandidateName, resume.FileName, positionTag,
		resume.CreatedAt.Format("2006-01-02 15:04:05"), strings.Repeat("=", 60))

	// Chunks arrive ordered by section then index; group in encounter order.
	var order []string
	grouped := map[string][]*types.ResumeChunk{}
	for _, chunk := range chunks {
		if _, seen := grouped[chunk.SectionType]; !seen {
			order = append(order, chunk.SectionType)
		}
		grouped[chunk.SectionType] = append(grouped[chunk.SectionType], chunk)
	}
	for _, sectionType := range order {
		fmt.Fprintf(&b, "\n## %s\n", titleCase(strings.ReplaceAll(sectionType, "_", " ")))
		for _, chunk := range grouped[sectionType] {
			b.WriteString(chunk.Text)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// -------------------- list_candidates --------------------

type listInput struct {
	PositionTag string `json:"position_tag"`
}

func (r *Registry) listCandidates(ctx context.Context, resumeRepo repos.ResumeRepo, input json.RawMessage, ambientTag string) string {
	var in listInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Sprintf("Error: invalid list_candidates arguments: %v", err)
	}
	tag := strings.TrimSpace(in.PositionTag)
	if tag == "" {
		tag = strings.TrimSpace(ambientTag)
	}

	resumes, err := resumeRepo.List(ctx, nil, tag)
	if err != nil {
		r.log.Error("list_candidates failed", "error", err)
		return fmt.Sprintf("Error listing candidates: %v", err)
	}
	if len(resumes) == 0 {
		if tag != "" {
			return fmt.Sprintf("No candidates found for position '%s'.", tag)
		}
		return "No candidates found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d candidate(s):\n\n", len(resumes))
	for _, resume := range resumes {
		positionTag := resume.PositionTag
		if positionTag == "" {
			positionTag = "N/A"
		}
		fmt.Fprintf(&b, "- %s\n    File:       %s\n    Uploaded:   %s\n    Position:   %s\n    Sections:   %d\n    Embeddings: %s\n\n",
			resume.CandidateName, resume.FileName,
			resume.CreatedAt.Format("2006-01-02 15:04:05"),
			positionTag, resume.SectionsCount, resume.EmbeddingStatus)
	}
	return strings.TrimRight(b.String(), "\n")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
