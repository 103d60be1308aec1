package bus

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the lifecycle stage an event describes.
type Kind string

const (
	// KindAgentThink is emitted at the start of each reasoning iteration.
	KindAgentThink Kind = "agent_think"
	// KindToolUse is emitted before a tool invocation is dispatched.
	KindToolUse Kind = "tool_use"
	// KindToolResult is emitted after each tool outcome.
	KindToolResult Kind = "tool_result"
	// KindToolTimeout is emitted when a tool invocation exceeds its deadline.
	KindToolTimeout Kind = "tool_timeout"
	// KindMemoryTruncate is emitted when history turns are dropped from a view.
	KindMemoryTruncate Kind = "memory_truncate"
	// KindStatusText carries a human-readable one-line status.
	KindStatusText Kind = "status_text"
	// KindResult is the terminal event of a successful run.
	KindResult Kind = "result"
	// KindError is the terminal event of a failed run.
	KindError Kind = "error"
)

// Event is a single lifecycle notification. Events are never mutated after
// publication; subscribers receive them by value.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(kind Kind, sessionID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
