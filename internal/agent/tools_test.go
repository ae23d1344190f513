package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/errs"
	"github.com/coders-clan/cv-rag-agent/internal/retrieval"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

type fakeRetriever struct {
	results    []retrieval.Result
	err        error
	gotQuery   string
	gotTopK    int
	gotFilters retrieval.Filters
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int, filters retrieval.Filters) ([]retrieval.Result, error) {
	f.gotQuery = query
	f.gotTopK = topK
	f.gotFilters = filters
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeResumeRepo struct {
	resumes []*types.Resume
	err     error
	gotTag  string
}

func (f *fakeResumeRepo) Create(ctx context.Context, tx *gorm.DB, resume *types.Resume) (*types.Resume, error) {
	return resume, nil
}

func (f *fakeResumeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Resume, error) {
	for _, r := range f.resumes {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeResumeRepo) List(ctx context.Context, tx *gorm.DB, positionTag string) ([]*types.Resume, error) {
	f.gotTag = positionTag
	if f.err != nil {
		return nil, f.err
	}
	if positionTag == "" {
		return f.resumes, nil
	}
	var out []*types.Resume
	for _, r := range f.resumes {
		if r.PositionTag == positionTag {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResumeRepo) FindByCandidateName(ctx context.Context, tx *gorm.DB, name string) (*types.Resume, error) {
	if f.err != nil {
		return nil, f.err
	}
	lower := strings.ToLower(name)
	for _, r := range f.resumes {
		if strings.ToLower(r.CandidateName) == lower {
			return r, nil
		}
	}
	for _, r := range f.resumes {
		if strings.HasPrefix(strings.ToLower(r.CandidateName), lower) {
			return r, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeResumeRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	return nil
}

func (f *fakeResumeRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

type fakeChunkRepo struct {
	chunks map[uuid.UUID][]*types.ResumeChunk
	err    error
}

func (f *fakeChunkRepo) Create(ctx context.Context, tx *gorm.DB, chunks []*types.ResumeChunk) ([]*types.ResumeChunk, error) {
	return chunks, nil
}

func (f *fakeChunkRepo) GetByResumeID(ctx context.Context, tx *gorm.DB, resumeID uuid.UUID) ([]*types.ResumeChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[resumeID], nil
}

func (f *fakeChunkRepo) DeleteByResumeID(ctx context.Context, tx *gorm.DB, resumeID uuid.UUID) error {
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestRegistry(t *testing.T, ret retrieval.Retriever, resumes *fakeResumeRepo, chunks *fakeChunkRepo) *Registry {
	t.Helper()
	if ret == nil {
		ret = &fakeRetriever{}
	}
	if resumes == nil {
		resumes = &fakeResumeRepo{}
	}
	if chunks == nil {
		chunks = &fakeChunkRepo{}
	}
	reg, err := NewRegistry(testLogger(t), ret, resumes, chunks)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestRegistryDefinitions(t *testing.T) {
	reg := newTestRegistry(t, nil, nil, nil)
	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(defs))
	}
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
		if d.InputSchema == nil {
			t.Fatalf("tool %s missing input schema", d.Name)
		}
	}
	for _, want := range []string{ToolSearchResumes, ToolGetCandidateResume, ToolListCandidates} {
		if !names[want] {
			t.Fatalf("missing tool %s", want)
		}
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	reg := newTestRegistry(t, nil, nil, nil)
	out := reg.Dispatch(context.Background(), "delete_everything", json.RawMessage(`{}`), "")
	if !strings.Contains(out, "unknown tool 'delete_everything'") {
		t.Fatalf("expected unknown-tool message, got %q", out)
	}
}

func TestSearchResumesRendering(t *testing.T) {
	ret := &fakeRetriever{results: []retrieval.Result{
		{CandidateName: "Alice Ng", SectionType: "skills", Score: 0.9123, Text: "Go, Postgres", Rank: 1},
		{CandidateName: "Bob Li", SectionType: "experience", Score: 0.8, Text: strings.Repeat("x", 600), Rank: 2},
	}}
	reg := newTestRegistry(t, ret, nil, nil)

	out := reg.Dispatch(context.Background(), ToolSearchResumes, json.RawMessage(`{"query":"golang","top_k":5}`), "")
	if !strings.Contains(out, "Found 2 matching resume chunk(s)") {
		t.Fatalf("missing count line: %q", out)
	}
	if !strings.Contains(out, "--- Result 1 ---") || !strings.Contains(out, "Candidate: Alice Ng") {
		t.Fatalf("missing first result block: %q", out)
	}
	if !strings.Contains(out, "Score:     0.9123") {
		t.Fatalf("missing formatted score: %q", out)
	}
	if !strings.Contains(out, strings.Repeat("x", 500)+"...") {
		t.Fatalf("long text not truncated: %q", out)
	}
	if ret.gotTopK != 5 {
		t.Fatalf("expected top_k 5, got %d", ret.gotTopK)
	}
}

func TestSearchResumesFailureIsString(t *testing.T) {
	ret := &fakeRetriever{err: errors.New("index down")}
	reg := newTestRegistry(t, ret, nil, nil)
	out := reg.Dispatch(context.Background(), ToolSearchResumes, json.RawMessage(`{"query":"golang"}`), "")
	if !strings.Contains(out, "Error performing resume search") {
		t.Fatalf("expected failure string, got %q", out)
	}
}

func TestSearchResumesEmpty(t *testing.T) {
	reg := newTestRegistry(t, &fakeRetriever{}, nil, nil)
	out := reg.Dispatch(context.Background(), ToolSearchResumes, json.RawMessage(`{"query":"golang"}`), "")
	if out != "No matching resume chunks found for the given query." {
		t.Fatalf("unexpected empty-store message: %q", out)
	}
}

func TestSearchResumesAmbientPositionTag(t *testing.T) {
	ret := &fakeRetriever{}
	reg := newTestRegistry(t, ret, nil, nil)

	reg.Dispatch(context.Background(), ToolSearchResumes, json.RawMessage(`{"query":"golang"}`), "backend")
	if ret.gotFilters.PositionTag != "backend" {
		t.Fatalf("ambient tag not applied: %+v", ret.gotFilters)
	}

	reg.Dispatch(context.Background(), ToolSearchResumes, json.RawMessage(`{"query":"golang","position_tag":"data"}`), "backend")
	if ret.gotFilters.PositionTag != "data" {
		t.Fatalf("explicit tag should win: %+v", ret.gotFilters)
	}
}

func profileFixtures() (*fakeResumeRepo, *fakeChunkRepo, *types.Resume) {
	resume := &types.Resume{
		ID:            uuid.New(),
		CandidateName: "Alice Ng",
		FileName:      "alice.txt",
		PositionTag:   "backend",
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	resumes := &fakeResumeRepo{resumes: []*types.Resume{resume}}
	chunks := &fakeChunkRepo{chunks: map[uuid.UUID][]*types.ResumeChunk{
		resume.ID: {
			{SectionType: "experience", ChunkIndex: 0, Text: "Acme Corp 2020-2022"},
			{SectionType: "experience", ChunkIndex: 1, Text: "Beta Inc 2022-2025"},
			{SectionType: "skills", ChunkIndex: 0, Text: "Go, Postgres, Redis"},
		},
	}}
	return resumes, chunks, resume
}

func TestGetCandidateResumeReconstruction(t *testing.T) {
	resumes, chunks, _ := profileFixtures()
	reg := newTestRegistry(t, nil, resumes, chunks)

	out := reg.Dispatch(context.Background(), ToolGetCandidateResume, json.RawMessage(`{"candidate_name":"alice ng"}`), "")
	if !strings.Contains(out, "Resume for: Alice Ng") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "## Experience") || !strings.Contains(out, "## Skills") {
		t.Fatalf("missing section headings: %q", out)
	}
	if strings.Index(out, "Acme Corp 2020-2022") > strings.Index(out, "Beta Inc 2022-2025") {
		t.Fatalf("chunks out of order: %q", out)
	}
}

func TestGetCandidateResumeIdempotent(t *testing.T) {
	resumes, chunks, _ := profileFixtures()
	reg := newTestRegistry(t, nil, resumes, chunks)

	first := reg.Dispatch(context.Background(), ToolGetCandidateResume, json.RawMessage(`{"candidate_name":"Alice Ng"}`), "")
	second := reg.Dispatch(context.Background(), ToolGetCandidateResume, json.RawMessage(`{"candidate_name":"Alice Ng"}`), "")
	if first != second {
		t.Fatalf("full profile not idempotent:\nfirst: %q\nsecond: %q", first, second)
	}
}

func TestGetCandidateResumeNotFound(t *testing.T) {
	reg := newTestRegistry(t, nil, &fakeResumeRepo{}, nil)
	out := reg.Dispatch(context.Background(), ToolGetCandidateResume, json.RawMessage(`{"candidate_name":"Nobody"}`), "")
	if !strings.Contains(out, "No resume found for candidate 'Nobody'") {
		t.Fatalf("expected not-found message, got %q", out)
	}
}

func TestGetCandidateResumeNoChunksYet(t *testing.T) {
	resume := &types.Resume{ID: uuid.New(), CandidateName: "Bob Li", FileName: "bob.txt"}
	reg := newTestRegistry(t, nil, &fakeResumeRepo{resumes: []*types.Resume{resume}}, &fakeChunkRepo{})
	out := reg.Dispatch(context.Background(), ToolGetCandidateResume, json.RawMessage(`{"candidate_name":"Bob Li"}`), "")
	if !strings.Contains(out, "no chunks are stored yet") {
		t.Fatalf("expected processing message, got %q", out)
	}
}

func TestListCandidates(t *testing.T) {
	resumes := &fakeResumeRepo{resumes: []*types.Resume{
		{CandidateName: "Alice Ng", FileName: "alice.txt", PositionTag: "backend", SectionsCount: 4, EmbeddingStatus: "completed"},
		{CandidateName: "Bob Li", FileName: "bob.txt", PositionTag: "data", SectionsCount: 3, EmbeddingStatus: "pending"},
	}}
	reg := newTestRegistry(t, nil, resumes, nil)

	out := reg.Dispatch(context.Background(), ToolListCandidates, json.RawMessage(`{}`), "")
	if !strings.Contains(out, "Found 2 candidate(s)") {
		t.Fatalf("missing count: %q", out)
	}
	if !strings.Contains(out, "- Alice Ng") || !strings.Contains(out, "Embeddings: completed") {
		t.Fatalf("missing candidate entry: %q", out)
	}

	out = reg.Dispatch(context.Background(), ToolListCandidates, json.RawMessage(`{"position_tag":"data"}`), "")
	if strings.Contains(out, "Alice Ng") || !strings.Contains(out, "Bob Li") {
		t.Fatalf("filter not applied: %q", out)
	}
}

func TestListCandidatesEmpty(t *testing.T) {
	reg := newTestRegistry(t, nil, &fakeResumeRepo{}, nil)
	out := reg.Dispatch(context.Background(), ToolListCandidates, json.RawMessage(`{"position_tag":"ios"}`), "")
	if out != "No candidates found for position 'ios'." {
		t.Fatalf("unexpected message: %q", out)
	}
	out = reg.Dispatch(context.Background(), ToolListCandidates, json.RawMessage(`{}`), "")
	if out != "No candidates found." {
		t.Fatalf("unexpected message: %q", out)
	}
}
