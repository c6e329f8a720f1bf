package testutil

import (
	"context"
	"strings"
	"sync"

	"tether/model"
	"tether/provider"
)

// MockRound scripts one transport round.
type MockRound struct {
	Deltas    []string
	ToolCalls []provider.RawToolCall
	// Err is returned after the deltas are emitted.
	Err error
	// Func, when set, replaces the scripted behavior.
	Func func(ctx context.Context, messages []model.Message, emit func(model.Event) bool) (provider.RoundResult, error)
}

// MockTransport implements provider.Transport by replaying scripted rounds.
// Rounds past the end of the script finish with no text and no tool calls.
type MockTransport struct {
	Rounds []MockRound

	mu       sync.Mutex
	requests [][]model.Message
	tools    [][]model.ToolDefinition
}

// NewMockTransport creates a mock transport that plays rounds in order
func NewMockTransport(rounds ...MockRound) *MockTransport {
	return &MockTransport{Rounds: rounds}
}

// TextReply is a one-round script answering with text split into deltas.
func TextReply(deltas ...string) *MockTransport {
	return NewMockTransport(MockRound{Deltas: deltas})
}

func (m *MockTransport) Round(ctx context.Context, messages []model.Message, tools []model.ToolDefinition, emit func(model.Event) bool) (provider.RoundResult, error) {
	m.mu.Lock()
	i := len(m.requests)
	m.requests = append(m.requests, model.CloneMessages(messages))
	m.tools = append(m.tools, append([]model.ToolDefinition(nil), tools...))
	m.mu.Unlock()

	if i >= len(m.Rounds) {
		return provider.RoundResult{}, nil
	}
	r := m.Rounds[i]
	if r.Func != nil {
		return r.Func(ctx, messages, emit)
	}

	var text strings.Builder
	for _, d := range r.Deltas {
		text.WriteString(d)
		if !emit(model.TextDelta(d)) {
			return provider.RoundResult{}, provider.ErrStopped
		}
	}
	if r.Err != nil {
		return provider.RoundResult{}, r.Err
	}
	return provider.RoundResult{Text: text.String(), ToolCalls: r.ToolCalls}, nil
}

// Requests returns the history sent on each round so far.
func (m *MockTransport) Requests() [][]model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.Message(nil), m.requests...)
}

// Tools returns the tool set offered on each round so far.
func (m *MockTransport) Tools() [][]model.ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.ToolDefinition(nil), m.tools...)
}
