// Package provider streams chat completions from a remote model and runs the
// multi-round tool loop on top of them.
//
// A Client is built around a Transport, which performs exactly one round
// against one backend (an OpenAI-compatible SSE endpoint, Ollama or
// Anthropic). The Client owns everything that is the same for every backend:
// tool-call argument parsing, dispatch, panic recovery, the tool-loop
// messages and the decision to go around again.
//
// # Usage
//
//	c, err := provider.NewClient(provider.Config{
//	    Type:    provider.ProviderTypeOpenAI,
//	    BaseURL: "http://localhost:8080/v1",
//	    Model:   "gpt-4o-mini",
//	}, logger)
//	if err != nil {
//	    // handle error
//	}
//	for ev, err := range c.Stream(ctx, history, tools) {
//	    // render ev
//	}
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tether/model"
)

// ProviderType identifies the transport implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds the connection options of a Client.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string        // Sent as a bearer token when set
	Timeout time.Duration // Per request; zero means no limit

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// ErrStopped is returned by a Transport when the emit callback asked it to
// stop because the consumer went away.
var ErrStopped = errors.New("consumer stopped reading events")

// RawToolCall is a tool call as reassembled by a transport. Arguments is the
// raw JSON text, possibly malformed.
type RawToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// RoundResult is what a transport accumulated over one round.
type RoundResult struct {
	Text      string
	ToolCalls []RawToolCall
}

// Transport performs one request/response round. It emits text_delta events
// as they arrive and returns the accumulated text and tool calls in first-seen
// order. A non-success status is reported as a *StatusError.
type Transport interface {
	Round(ctx context.Context, messages []model.Message, tools []model.ToolDefinition, emit func(model.Event) bool) (RoundResult, error)
}

// StatusError is a non-success response from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}
