package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coders-clan/cv-rag-agent/internal/agent"
	"github.com/coders-clan/cv-rag-agent/internal/clients/redis"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/errs"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

const (
	persistTimeout      = 10 * time.Second
	defaultSessionLimit = 50
)

// TurnRequest is one user turn against a new or existing session.
type TurnRequest struct {
	Message     string
	SessionID   string
	PositionTag string
	Model       string
}

// TurnResult is the non-streaming outcome of a turn.
type TurnResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Rounds    int    `json:"tool_rounds"`
}

type ChatService interface {
	// StreamTurn starts a turn and returns the session id plus a channel
	// of agent events. The channel closes when the turn finishes; the
	// transcript is persisted after the last event, including on failure.
	StreamTurn(ctx context.Context, req TurnRequest) (string, <-chan agent.Event, error)
	// CompleteTurn runs a turn to completion without streaming.
	CompleteTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
	ListSessions(ctx context.Context, limit int) ([]*types.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type chatService struct {
	log      *logger.Logger
	loop     *agent.Loop
	sessions redis.SessionStore
}

func NewChatService(baseLog *logger.Logger, loop *agent.Loop, sessions redis.SessionStore) ChatService {
	return &chatService{
		log:      baseLog.With("service", "ChatService"),
		loop:     loop,
		sessions: sessions,
	}
}

// resolveSession loads the requested session or creates a fresh one.
// Nothing is written to the store here; persistence happens once the
// turn has produced records.
func (s *chatService) resolveSession(ctx context.Context, req TurnRequest) (*types.ChatSession, error) {
	if req.SessionID != "" {
		session, err := s.sessions.Load(ctx, req.SessionID)
		if err == nil {
			if req.PositionTag != "" {
				session.PositionTag = req.PositionTag
			}
			return session, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("load session: %w", err)
		}
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &types.ChatSession{
		ID:          id,
		PositionTag: req.PositionTag,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *chatService) StreamTurn(ctx context.Context, req TurnRequest) (string, <-chan agent.Event, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", nil, fmt.Errorf("%w: message is empty", errs.ErrInvalidArgument)
	}

	session, err := s.resolveSession(ctx, req)
	if err != nil {
		return "", nil, err
	}

	events := make(chan agent.Event, 64)
	go func() {
		defer close(events)

		emit := func(ev agent.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		outcome, runErr := s.loop.Run(ctx, agent.RunParams{
			Message:     req.Message,
			History:     session.Messages,
			PositionTag: session.PositionTag,
			Model:       req.Model,
		}, emit)

		if runErr != nil && ctx.Err() == nil {
			s.log.Error("Agent turn failed", "session_id", session.ID, "error", runErr)
			emit(agent.ErrorEvent(turnFailureMessage(runErr)))
		}

		s.persistTurn(session, req.Message, outcome)
	}()

	return session.ID, events, nil
}

func (s *chatService) CompleteTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is empty", errs.ErrInvalidArgument)
	}

	session, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome, runErr := s.loop.Run(ctx, agent.RunParams{
		Message:     req.Message,
		History:     session.Messages,
		PositionTag: session.PositionTag,
		Model:       req.Model,
	}, nil)

	s.persistTurn(session, req.Message, outcome)

	if runErr != nil {
		return nil, runErr
	}
	return &TurnResult{
		SessionID: session.ID,
		Reply:     outcome.FinalText,
		Rounds:    outcome.Rounds,
	}, nil
}

// persistTurn appends the user message plus whatever the run produced
// and saves the session. A failed or cancelled run still leaves a
// coherent transcript: tool records are only written as paired
// invocation-and-result entries.
func (s *chatService) persistTurn(session *types.ChatSession, userMessage string, outcome *agent.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	session.Messages = append(session.Messages, types.TranscriptMessage{
		Role:    types.MessageRoleUser,
		Content: userMessage,
	})
	if outcome != nil {
		session.Messages = append(session.Messages, outcome.Records...)
	}
	session.UpdatedAt = time.Now().UTC()

	if err := s.sessions.Save(ctx, session); err != nil {
		s.log.Error("Failed to persist session", "session_id", session.ID, "error", err)
	}
}

func (s *chatService) ListSessions(ctx context.Context, limit int) ([]*types.ChatSession, error) {
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	return s.sessions.List(ctx, limit)
}

func (s *chatService) DeleteSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is empty", errs.ErrInvalidArgument)
	}
	return s.sessions.Delete(ctx, sessionID)
}

func turnFailureMessage(err error) string {
	if errors.Is(err, agent.ErrRoundLimit) {
		return "The assistant reached its tool call limit before finishing. Try a narrower question."
	}
	return "The assistant could not complete this response. Please try again."
}
