package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/coders-clan/cv-rag-agent/internal/clients/anthropic"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/ctxutil"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

// ErrRoundLimit is the distinct terminal reason for a conversation
// that keeps requesting tool calls past the configured bound.
var ErrRoundLimit = errors.New("tool call round limit exceeded")

// DefaultMaxToolRounds bounds awaiting-model/dispatching-tools round
// trips per turn.
const DefaultMaxToolRounds = 6

// toolNoticeLimit bounds tool result text kept in the persisted
// transcript reduction.
const toolNoticeLimit = 300

// ModelClient is the language-model collaborator the loop drives.
type ModelClient interface {
	StreamMessage(ctx context.Context, req anthropic.MessageRequest, onDelta func(delta string)) (*anthropic.MessageResponse, error)
	DefaultModel() string
}

type Config struct {
	MaxToolRounds int
	MaxTokens     int
}

// RunParams seeds one conversation turn.
type RunParams struct {
	Message     string
	History     []types.TranscriptMessage
	PositionTag string
	Model       string
}

// Outcome is what a finished (or interrupted) turn leaves behind.
// Records is the transcript reduction for this turn: assistant text
// plus completed tool notices, never a dangling tool invocation.
type Outcome struct {
	FinalText string
	Records   []types.TranscriptMessage
	Rounds    int
}

// Loop drives one conversation turn through the model and the tool
// registry: it streams a model response, dispatches any requested tool
// invocations, folds the results back into the message list and
// repeats until the model stops requesting tools or a bound is hit.
type Loop struct {
	log   *logger.Logger
	model ModelClient
	tools ToolDispatcher
	cfg   Config
}

func NewLoop(log *logger.Logger, model ModelClient, tools ToolDispatcher, cfg Config) (*Loop, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if model == nil || tools == nil {
		return nil, fmt.Errorf("model client and tool dispatcher required")
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	return &Loop{
		log:   log.With("service", "AgentLoop"),
		model: model,
		tools: tools,
		cfg:   cfg,
	}, nil
}

// Run executes one turn. Token and tool-call events are passed to emit
// in the exact order produced; emit may be nil for non-streaming use.
// On error the returned Outcome still carries the completed records.
func (l *Loop) Run(ctx context.Context, p RunParams, emit func(Event)) (*Outcome, error) {
	ctx = ctxutil.Default(ctx)
	if emit == nil {
		emit = func(Event) {}
	}

	out := &Outcome{}
	if strings.TrimSpace(p.Message) == "" {
		return out, fmt.Errorf("message required")
	}

	msgs := buildMessages(p.History, p.Message)
	req := anthropic.MessageRequest{
		Model:     p.Model,
		System:    SystemPrompt,
		Tools:     l.tools.Definitions(),
		MaxTokens: l.cfg.MaxTokens,
	}

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		// awaiting-model: stream one response, emitting tokens in
		// model order.
		req.Messages = msgs
		resp, err := l.model.StreamMessage(ctx, req, func(delta string) {
			emit(TokenEvent(delta))
		})
		if err != nil {
			return out, fmt.Errorf("model call: %w", err)
		}

		if text := resp.TextContent(); strings.TrimSpace(text) != "" {
			out.Records = append(out.Records, types.TranscriptMessage{
				Role:    types.MessageRoleAssistant,
				Content: text,
			})
			out.FinalText = text
		}

		uses := resp.ToolUses()
		if len(uses) == 0 {
			return out, nil
		}

		out.Rounds++
		if out.Rounds > l.cfg.MaxToolRounds {
			l.log.Warn("Tool round limit exceeded", "rounds", out.Rounds, "max", l.cfg.MaxToolRounds)
			return out, ErrRoundLimit
		}

		// dispatching-tools: all tokens for this cycle are flushed, so
		// the tool-call notices may now be emitted, one per invocation
		// in request order.
		for _, use := range uses {
			emit(ToolCallEvent(use.Name, parseArgs(use.Input)))
		}

		results := make([]string, len(uses))
		g, gctx := errgroup.WithContext(ctx)
		for i, use := range uses {
			i, use := i, use
			g.Go(func() error {
				results[i] = l.tools.Dispatch(gctx, use.Name, use.Input, p.PositionTag)
				return nil
			})
		}
		// Handlers render their own failures; Wait only collects.
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			// Dispatch completed, but the client is gone: keep the
			// paired records and stop before the next model call.
			appendToolRecords(out, uses, results)
			return out, err
		}
		appendToolRecords(out, uses, results)

		msgs = append(msgs, anthropic.Message{
			Role:    anthropic.RoleAssistant,
			Content: resp.Content,
		})
		resultBlocks := make([]anthropic.ContentBlock, 0, len(uses))
		for i, use := range uses {
			resultBlocks = append(resultBlocks, anthropic.ContentBlock{
				Type:      anthropic.ContentTypeToolResult,
				ToolUseID: use.ID,
				Content:   results[i],
			})
		}
		msgs = append(msgs, anthropic.Message{
			Role:    anthropic.RoleUser,
			Content: resultBlocks,
		})
	}
}

func buildMessages(history []types.TranscriptMessage, message string) []anthropic.Message {
	msgs := make([]anthropic.Message, 0, len(history)+1)
	for _, h := range history {
		// Tool notices are transcript bookkeeping, not model input.
		if h.Role != types.MessageRoleUser && h.Role != types.MessageRoleAssistant {
			continue
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		msgs = append(msgs, anthropic.Message{
			Role:    h.Role,
			Content: []anthropic.ContentBlock{{Type: anthropic.ContentTypeText, Text: h.Content}},
		})
	}
	msgs = append(msgs, anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: []anthropic.ContentBlock{{Type: anthropic.ContentTypeText, Text: message}},
	})
	return msgs
}

func appendToolRecords(out *Outcome, uses []anthropic.ContentBlock, results []string) {
	for i, use := range uses {
		notice := results[i]
		if len(notice) > toolNoticeLimit {
			notice = notice[:toolNoticeLimit] + "..."
		}
		out.Records = append(out.Records, types.TranscriptMessage{
			Role:    types.MessageRoleTool,
			Content: fmt.Sprintf("[%s] %s", use.Name, notice),
		})
	}
}

func parseArgs(input json.RawMessage) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
