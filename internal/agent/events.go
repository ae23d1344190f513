package agent

// EventType discriminates the events a conversation turn produces.
type EventType string

const (
	EventSession  EventType = "session"
	EventToken    EventType = "token"
	EventToolCall EventType = "tool_call"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one element of the ordered stream a turn emits. Events are
// produced in strict temporal order and never reordered downstream.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	Name      string         `json:"name,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
}

func TokenEvent(content string) Event {
	return Event{Type: EventToken, Content: content}
}

func ToolCallEvent(name string, args map[string]any) Event {
	if args == nil {
		args = map[string]any{}
	}
	return Event{Type: EventToolCall, Name: name, Args: args}
}

func ErrorEvent(content string) Event {
	return Event{Type: EventError, Content: content}
}
