package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/coders-clan/cv-rag-agent/internal/clients/anthropic"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

type scriptStep struct {
	tokens      []string
	toolUses    []anthropic.ContentBlock
	err         error
	cancelAfter int // cancel the run context after this many tokens (0 = never)
}

type scriptedModel struct {
	steps       []scriptStep
	calls       int
	gotRequests []anthropic.MessageRequest
	cancel      context.CancelFunc
}

func (m *scriptedModel) DefaultModel() string { return "test-model" }

func (m *scriptedModel) StreamMessage(ctx context.Context, req anthropic.MessageRequest, onDelta func(string)) (*anthropic.MessageResponse, error) {
	m.gotRequests = append(m.gotRequests, req)
	if m.calls >= len(m.steps) {
		return nil, fmt.Errorf("unexpected model call %d", m.calls+1)
	}
	step := m.steps[m.calls]
	m.calls++

	var text strings.Builder
	for i, tok := range step.tokens {
		if onDelta != nil {
			onDelta(tok)
		}
		text.WriteString(tok)
		if step.cancelAfter > 0 && i+1 == step.cancelAfter {
			m.cancel()
			return nil, context.Canceled
		}
	}
	if step.err != nil {
		return nil, step.err
	}

	resp := &anthropic.MessageResponse{StopReason: anthropic.StopReasonEndTurn}
	if text.Len() > 0 {
		resp.Content = append(resp.Content, anthropic.ContentBlock{
			Type: anthropic.ContentTypeText,
			Text: text.String(),
		})
	}
	if len(step.toolUses) > 0 {
		resp.Content = append(resp.Content, step.toolUses...)
		resp.StopReason = anthropic.StopReasonToolUse
	}
	return resp, nil
}

type recordingDispatcher struct {
	dispatched []string
	result     func(name string) string
}

func (d *recordingDispatcher) Definitions() []anthropic.Tool { return nil }

func (d *recordingDispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage, positionTag string) string {
	d.dispatched = append(d.dispatched, name)
	if d.result != nil {
		return d.result(name)
	}
	return "result for " + name
}

func toolUse(id, name, input string) anthropic.ContentBlock {
	return anthropic.ContentBlock{
		Type:  anthropic.ContentTypeToolUse,
		ID:    id,
		Name:  name,
		Input: json.RawMessage(input),
	}
}

func newTestLoop(t *testing.T, model ModelClient, tools ToolDispatcher, maxRounds int) *Loop {
	t.Helper()
	loop, err := NewLoop(testLogger(t), model, tools, Config{MaxToolRounds: maxRounds})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return loop
}

// checkToolRecordsPaired verifies that every tool record in the
// transcript reduction carries both the invocation name and its
// result.
func checkToolRecordsPaired(t *testing.T, records []types.TranscriptMessage) {
	t.Helper()
	for _, rec := range records {
		if rec.Role != types.MessageRoleTool {
			continue
		}
		if !strings.HasPrefix(rec.Content, "[") || !strings.Contains(rec.Content, "] ") {
			t.Fatalf("tool record missing invocation/result pairing: %q", rec.Content)
		}
	}
}

func TestLoopTextOnlyTurn(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{
		{tokens: []string{"Hel", "lo ", "there."}},
	}}
	loop := newTestLoop(t, model, &recordingDispatcher{}, 6)

	var events []Event
	out, err := loop.Run(context.Background(), RunParams{Message: "hi"}, func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.FinalText != "Hello there." {
		t.Fatalf("unexpected final text: %q", out.FinalText)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 token events, got %d", len(events))
	}
	for i, want := range []string{"Hel", "lo ", "there."} {
		if events[i].Type != EventToken || events[i].Content != want {
			t.Fatalf("event %d out of order: %+v", i, events[i])
		}
	}
	if len(out.Records) != 1 || out.Records[0].Role != types.MessageRoleAssistant {
		t.Fatalf("unexpected records: %+v", out.Records)
	}
}

func TestLoopToolRoundTripOrdering(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{
		{tokens: []string{"Let ", "me ", "search."}, toolUses: []anthropic.ContentBlock{
			toolUse("tu_1", "search_resumes", `{"query":"golang"}`),
		}},
		{tokens: []string{"Alice fits best."}},
	}}
	disp := &recordingDispatcher{}
	loop := newTestLoop(t, model, disp, 6)

	var events []Event
	out, err := loop.Run(context.Background(), RunParams{Message: "who knows go?"}, func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// All first-cycle tokens must precede the tool-call notice.
	var toolCallAt = -1
	for i, ev := range events {
		if ev.Type == EventToolCall {
			toolCallAt = i
			break
		}
	}
	if toolCallAt != 3 {
		t.Fatalf("tool call event at position %d, want 3: %+v", toolCallAt, events)
	}
	if events[toolCallAt].Name != "search_resumes" {
		t.Fatalf("unexpected tool call event: %+v", events[toolCallAt])
	}
	if events[toolCallAt].Args["query"] != "golang" {
		t.Fatalf("tool call args not surfaced: %+v", events[toolCallAt].Args)
	}

	// The dispatched result must be folded back as a paired
	// tool_result block on the next model call.
	if len(model.gotRequests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(model.gotRequests))
	}
	second := model.gotRequests[1].Messages
	last := second[len(second)-1]
	if last.Role != anthropic.RoleUser || len(last.Content) != 1 {
		t.Fatalf("unexpected folded result message: %+v", last)
	}
	if last.Content[0].Type != anthropic.ContentTypeToolResult || last.Content[0].ToolUseID != "tu_1" {
		t.Fatalf("tool result not paired with invocation: %+v", last.Content[0])
	}
	if last.Content[0].Content != "result for search_resumes" {
		t.Fatalf("unexpected tool result content: %q", last.Content[0].Content)
	}

	if out.FinalText != "Alice fits best." {
		t.Fatalf("unexpected final text: %q", out.FinalText)
	}
	checkToolRecordsPaired(t, out.Records)
}

func TestLoopDispatchesAllInvocationsBeforeNextCall(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{
		{toolUses: []anthropic.ContentBlock{
			toolUse("tu_1", "search_resumes", `{"query":"go"}`),
			toolUse("tu_2", "list_candidates", `{}`),
		}},
		{tokens: []string{"done"}},
	}}
	disp := &recordingDispatcher{}
	loop := newTestLoop(t, model, disp, 6)

	var events []Event
	_, err := loop.Run(context.Background(), RunParams{Message: "go"}, func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(disp.dispatched) != 2 {
		t.Fatalf("expected both tools dispatched, got %v", disp.dispatched)
	}

	second := model.gotRequests[1].Messages
	last := second[len(second)-1]
	if len(last.Content) != 2 {
		t.Fatalf("expected 2 tool results, got %d", len(last.Content))
	}
	if last.Content[0].ToolUseID != "tu_1" || last.Content[1].ToolUseID != "tu_2" {
		t.Fatalf("tool results out of request order: %+v", last.Content)
	}

	var callNames []string
	for _, ev := range events {
		if ev.Type == EventToolCall {
			callNames = append(callNames, ev.Name)
		}
	}
	if len(callNames) != 2 || callNames[0] != "search_resumes" || callNames[1] != "list_candidates" {
		t.Fatalf("tool call events out of order: %v", callNames)
	}
}

func TestLoopUnknownToolContinues(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{
		{toolUses: []anthropic.ContentBlock{
			toolUse("tu_1", "make_coffee", `{}`),
		}},
		{tokens: []string{"I could not do that."}},
	}}
	reg := newTestRegistry(t, nil, nil, nil)
	loop := newTestLoop(t, model, reg, 6)

	out, err := loop.Run(context.Background(), RunParams{Message: "coffee please"}, nil)
	if err != nil {
		t.Fatalf("expected loop to continue past unknown tool, got %v", err)
	}

	second := model.gotRequests[1].Messages
	last := second[len(second)-1]
	if !strings.Contains(last.Content[0].Content, "unknown tool 'make_coffee'") {
		t.Fatalf("expected descriptive failure result, got %q", last.Content[0].Content)
	}
	if out.FinalText != "I could not do that." {
		t.Fatalf("unexpected final text: %q", out.FinalText)
	}
	checkToolRecordsPaired(t, out.Records)
}

func TestLoopRoundLimitFails(t *testing.T) {
	var steps []scriptStep
	for i := 0; i < 8; i++ {
		steps = append(steps, scriptStep{toolUses: []anthropic.ContentBlock{
			toolUse(fmt.Sprintf("tu_%d", i), "search_resumes", `{"query":"again"}`),
		}})
	}
	model := &scriptedModel{steps: steps}
	disp := &recordingDispatcher{}
	loop := newTestLoop(t, model, disp, 6)

	out, err := loop.Run(context.Background(), RunParams{Message: "loop forever"}, nil)
	if !errors.Is(err, ErrRoundLimit) {
		t.Fatalf("expected ErrRoundLimit, got %v", err)
	}
	// Six rounds dispatch; the seventh request trips the bound.
	if len(disp.dispatched) != 6 {
		t.Fatalf("expected 6 dispatched rounds, got %d", len(disp.dispatched))
	}
	if model.calls != 7 {
		t.Fatalf("expected 7 model calls, got %d", model.calls)
	}
	checkToolRecordsPaired(t, out.Records)
}

func TestLoopModelFailureFails(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{
		{err: errors.New("model service unavailable")},
	}}
	loop := newTestLoop(t, model, &recordingDispatcher{}, 6)

	_, err := loop.Run(context.Background(), RunParams{Message: "hi"}, nil)
	if err == nil || !strings.Contains(err.Error(), "model service unavailable") {
		t.Fatalf("expected model failure, got %v", err)
	}
}

func TestLoopCancelMidStreamLeavesNoDanglingInvocation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedModel{
		cancel: cancel,
		steps: []scriptStep{
			{tokens: []string{"a", "b", "c", "d", "e"}, cancelAfter: 2, toolUses: []anthropic.ContentBlock{
				toolUse("tu_1", "search_resumes", `{"query":"go"}`),
			}},
		},
	}
	disp := &recordingDispatcher{}
	loop := newTestLoop(t, model, disp, 6)

	var events []Event
	out, err := loop.Run(ctx, RunParams{Message: "hi"}, func(ev Event) {
		events = append(events, ev)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 token events before disconnect, got %d", len(events))
	}
	if len(disp.dispatched) != 0 {
		t.Fatalf("no tools should run after disconnect, got %v", disp.dispatched)
	}
	for _, rec := range out.Records {
		if rec.Role == types.MessageRoleTool {
			t.Fatalf("dangling tool record persisted: %+v", rec)
		}
	}
}

func TestLoopCancelDuringDispatchKeepsPairedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedModel{steps: []scriptStep{
		{toolUses: []anthropic.ContentBlock{
			toolUse("tu_1", "search_resumes", `{"query":"go"}`),
		}},
	}}
	disp := &recordingDispatcher{result: func(name string) string {
		cancel()
		return "partial result"
	}}
	loop := newTestLoop(t, model, disp, 6)

	out, err := loop.Run(ctx, RunParams{Message: "hi"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("no further model calls after disconnect, got %d", model.calls)
	}
	var toolRecords int
	for _, rec := range out.Records {
		if rec.Role == types.MessageRoleTool {
			toolRecords++
			if !strings.Contains(rec.Content, "partial result") {
				t.Fatalf("completed result missing from record: %q", rec.Content)
			}
		}
	}
	if toolRecords != 1 {
		t.Fatalf("expected the completed invocation to be persisted once, got %d", toolRecords)
	}
	checkToolRecordsPaired(t, out.Records)
}
