package model

import "time"

// EventType tags an Event.
type EventType string

const (
	EventTextDelta       EventType = "text_delta"
	EventToolCallStart   EventType = "tool_call_start"
	EventToolCallEnd     EventType = "tool_call_end"
	EventToolLoopMessage EventType = "tool_loop_message"
	EventTurnEnd         EventType = "turn_end"
	EventError           EventType = "error"
)

// Event is the only channel between the streaming client and the layers
// above it. Which payload field is set depends on Type:
//
//   - EventTextDelta: Delta
//   - EventToolCallStart, EventToolCallEnd: ToolCall (Result set on end)
//   - EventToolLoopMessage: Message
//   - EventError: Error
type Event struct {
	Type     EventType
	Delta    string
	ToolCall *ToolCall
	Message  *Message
	Error    string
}

// TextDelta builds a text_delta event.
func TextDelta(delta string) Event {
	return Event{Type: EventTextDelta, Delta: delta}
}

// ErrorEvent builds an error event.
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Error: msg}
}

// ThreadMeta describes one persisted conversation.
type ThreadMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Skill is a named instruction document loaded on demand.
type Skill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"-"`
}

// PromptTemplate is a named text template invoked as /name.
type PromptTemplate struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description" toml:"description"`
	Body        string `yaml:"-" toml:"body"`
}
