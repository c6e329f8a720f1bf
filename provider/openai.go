package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"

	"tether/mcp"
	"tether/model"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAITransport streams from an OpenAI-compatible /chat/completions
// endpoint using server-sent events.
type OpenAITransport struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	headers    map[string]string
}

// NewOpenAITransport creates a transport for OpenAI or any compatible server.
func NewOpenAITransport(cfg Config) *OpenAITransport {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAITransport{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		headers:    map[string]string{},
	}
}

// NewOpenRouterTransport is the OpenAI transport pointed at OpenRouter, with
// its attribution headers.
func NewOpenRouterTransport(cfg Config) *OpenAITransport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}
	t := NewOpenAITransport(cfg)
	t.headers["HTTP-Referer"] = "https://github.com/tether"
	t.headers["X-Title"] = "tether"
	return t
}

type chatRequest struct {
	Model    string                               `json:"model"`
	Messages []wireMessage                        `json:"messages"`
	Tools    []openai.ChatCompletionToolUnionParam `json:"tools,omitempty"`
	Stream   bool                                 `json:"stream"`
}

// toolCallBuilder accumulates the fragments of one streamed tool call.
type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

func (t *OpenAITransport) Round(ctx context.Context, messages []model.Message, tools []model.ToolDefinition, emit func(model.Event) bool) (RoundResult, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Model:    t.model,
		Messages: ConvertToWireMessages(messages),
		Tools:    mcp.ConvertMCPToolsToOpenAIFormat(model.MCPTools(tools)),
		Stream:   true,
	})
	if err != nil {
		return RoundResult{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return RoundResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return RoundResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return RoundResult{}, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return readEventStream(resp.Body, emit)
}

// readEventStream parses SSE frames until [DONE] or end of body. Only
// complete "data: " lines are decoded; anything unparsable is skipped.
func readEventStream(body io.Reader, emit func(model.Event) bool) (RoundResult, error) {
	var text strings.Builder
	builders := map[int64]*toolCallBuilder{}
	var order []int64

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A trailing partial line is never parsed.
			if errors.Is(err, io.EOF) {
				break
			}
			return RoundResult{}, fmt.Errorf("failed to read stream: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk openai.ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			text.WriteString(delta.Content)
			if !emit(model.TextDelta(delta.Content)) {
				return RoundResult{}, ErrStopped
			}
		}

		for _, tc := range delta.ToolCalls {
			b, seen := builders[tc.Index]
			if !seen {
				b = &toolCallBuilder{}
				builders[tc.Index] = b
				order = append(order, tc.Index)
			}
			if tc.ID != "" {
				b.id = tc.ID
			}
			if tc.Function.Name != "" {
				b.name = tc.Function.Name
			}
			b.args.WriteString(tc.Function.Arguments)
		}
	}

	result := RoundResult{Text: text.String()}
	for _, idx := range order {
		b := builders[idx]
		result.ToolCalls = append(result.ToolCalls, RawToolCall{
			ID:        b.id,
			Name:      b.name,
			Arguments: b.args.String(),
		})
	}
	return result, nil
}
