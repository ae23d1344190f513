package types

import "time"

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleTool      = "tool"
)

// TranscriptMessage is one turn of a persisted conversation.
type TranscriptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession is the persisted conversation state, stored as a JSON
// value in redis and re-seeded into the agent on each turn.
type ChatSession struct {
	ID          string              `json:"id"`
	PositionTag string              `json:"position_tag,omitempty"`
	Messages    []TranscriptMessage `json:"messages"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
