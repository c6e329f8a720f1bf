package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ollama/ollama/api"

	"tether/mcp"
	"tether/model"
	"tether/ollama"
)

// OllamaTransport streams from an Ollama server through ollama.Client.
//
// Ollama delivers tool calls whole rather than in fragments; they are
// collected in arrival order.
type OllamaTransport struct {
	client *ollama.Client
	logger *slog.Logger
}

// NewOllamaTransport creates an Ollama transport.
func NewOllamaTransport(cfg Config, logger *slog.Logger) (*OllamaTransport, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OllamaTransport{client: client, logger: logger.With("component", "ollama")}, nil
}

func (t *OllamaTransport) Round(ctx context.Context, messages []model.Message, tools []model.ToolDefinition, emit func(model.Event) bool) (RoundResult, error) {
	var ollamaTools []api.Tool
	if len(tools) > 0 {
		if !ollama.SupportsTools(t.client.Model()) {
			t.logger.Warn("model may not support tool calling", "model", t.client.Model())
		}
		ollamaTools = mcp.ConvertMCPToolsToOllama(model.MCPTools(tools))
	}

	var text strings.Builder
	var calls []RawToolCall
	err := t.client.Chat(ctx, ConvertToOllamaMessages(messages), ollamaTools, func(chunk ollama.Chunk) error {
		if chunk.Content != "" {
			text.WriteString(chunk.Content)
			if !emit(model.TextDelta(chunk.Content)) {
				return ErrStopped
			}
		}
		calls = append(calls, ConvertToProviderToolCalls(chunk.ToolCalls)...)
		return nil
	})

	var statusErr api.StatusError
	switch {
	case errors.Is(err, ErrStopped):
		return RoundResult{}, ErrStopped
	case errors.As(err, &statusErr):
		body := statusErr.ErrorMessage
		if body == "" {
			body = statusErr.Status
		}
		return RoundResult{}, &StatusError{StatusCode: statusErr.StatusCode, Body: body}
	case err != nil:
		return RoundResult{}, fmt.Errorf("ollama chat failed: %w", err)
	}

	return RoundResult{Text: text.String(), ToolCalls: calls}, nil
}
