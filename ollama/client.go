// Package ollama is a small client for a local Ollama server's streaming
// chat endpoint.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3.1:latest"
)

// Chunk is one streamed piece of a chat response.
type Chunk struct {
	Content   string
	ToolCalls []api.ToolCall
	Done      bool
}

// Client talks to one Ollama host with a fixed model.
type Client struct {
	api   *api.Client
	model string
}

// NewClient creates a client. Empty host and model fall back to the
// defaults; a nil httpClient uses http.DefaultClient.
func NewClient(host, model string, httpClient *http.Client) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{api: api.NewClient(u, httpClient), model: model}, nil
}

// Model returns the model name requests are sent with.
func (c *Client) Model() string { return c.model }

// Chat streams one chat request. fn is called for every chunk; an error from
// fn stops the stream and is returned as is.
func (c *Client) Chat(ctx context.Context, messages []api.Message, tools []api.Tool, fn func(Chunk) error) error {
	stream := true
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
	}
	return c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		return fn(Chunk{
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
			Done:      resp.Done,
		})
	})
}

// toolSupport lists model families by name prefix. More specific prefixes
// come first so "llama3.1" is not caught by "llama3".
var toolSupport = []struct {
	prefix    string
	supported bool
}{
	{"llama3.3", true},
	{"llama3.2", true},
	{"llama3.1", true},
	{"llama3-gradient", false},
	{"command-r", true},
	{"qwen", true},
	{"mistral", true},
	{"nemotron", true},
	{"granite3", true},
	{"codellama", false},
	{"llama3", false},
	{"deepseek", false},
	{"phi", false},
	{"gemma", false},
}

// SupportsTools reports whether model is known to handle Ollama's tool
// calling. Unknown models report false.
func SupportsTools(model string) bool {
	model = strings.ToLower(model)
	for _, s := range toolSupport {
		if strings.HasPrefix(model, s.prefix) {
			return s.supported
		}
	}
	return false
}
