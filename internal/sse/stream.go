package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coders-clan/cv-rag-agent/internal/agent"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
)

// Encoder turns a turn's ordered event sequence into SSE frames.
// Every stream carries exactly one session event first and exactly one
// done event last, so a client detects completion by waiting for done
// regardless of how the turn ended.
type Encoder struct {
	log *logger.Logger
}

func NewEncoder(log *logger.Logger) (*Encoder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Encoder{log: log.With("component", "StreamEncoder")}, nil
}

// WriteHeaders sets the response headers for an incrementally-flushed
// event stream.
func WriteHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Stream drains events into w in arrival order, with no reordering
// buffer: each event is written and flushed as received. Session and
// done framing is owned here; any session or done events arriving on
// the channel are dropped rather than duplicated.
func (e *Encoder) Stream(w http.ResponseWriter, sessionID string, events <-chan agent.Event) error {
	WriteHeaders(w)
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}

	e.writeEvent(w, flusher, agent.Event{Type: agent.EventSession, SessionID: sessionID})
	for ev := range events {
		if ev.Type == agent.EventSession || ev.Type == agent.EventDone {
			continue
		}
		e.writeEvent(w, flusher, ev)
	}
	e.writeEvent(w, flusher, agent.Event{Type: agent.EventDone, SessionID: sessionID})
	return nil
}

func (e *Encoder) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev agent.Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		e.log.Warn("Failed to marshal stream event", "type", ev.Type, "error", err)
		return
	}
	// Writes to a gone client fail silently; the producer side stops
	// via its own context.
	_, _ = fmt.Fprintf(w, "data: %s\n\n", raw)
	flusher.Flush()
}
