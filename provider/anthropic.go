package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"tether/mcp"
	"tether/model"
)

// AnthropicTransport streams from Anthropic's Messages API using the
// official SDK.
type AnthropicTransport struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicTransport creates an Anthropic transport.
// Returns an error if the API key is missing.
func NewAnthropicTransport(cfg Config) (*AnthropicTransport, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicTransport{
		client: &client,
		model:  anthropicModel,
	}, nil
}

func (t *AnthropicTransport) Round(ctx context.Context, messages []model.Message, tools []model.ToolDefinition, emit func(model.Event) bool) (RoundResult, error) {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     t.model,
		Messages:  anthropicMessages,
		MaxTokens: 4096, // Required by Anthropic API
	}
	if len(systemPrompt) > 0 {
		params.System = systemPrompt
	}
	if len(tools) > 0 {
		params.Tools = mcp.ConvertMCPToolsToAnthropicFormat(model.MCPTools(tools))
	}

	stream := t.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}
	var text strings.Builder

	for stream.Next() {
		event := stream.Current()

		if err := msg.Accumulate(event); err != nil {
			return RoundResult{}, fmt.Errorf("failed to accumulate message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				text.WriteString(deltaVariant.Text)
				if !emit(model.TextDelta(deltaVariant.Text)) {
					return RoundResult{}, ErrStopped
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return RoundResult{}, &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return RoundResult{}, fmt.Errorf("Anthropic streaming error: %w", err)
	}

	return RoundResult{Text: text.String(), ToolCalls: extractToolCalls(msg.Content)}, nil
}

// convertToAnthropicMessages converts history to Anthropic format.
// System messages move to the separate system parameter and consecutive
// tool results are merged into one user message.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		if msg.Role != model.RoleTool {
			flushResults()
		}

		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: msg.Content,
			})

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))

		case model.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))

		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}
	flushResults()

	return anthropicMsgs, systemBlocks
}

// extractToolCalls extracts tool_use blocks from the accumulated message.
func extractToolCalls(content []anthropic.ContentBlockUnion) []RawToolCall {
	var toolCalls []RawToolCall

	for _, block := range content {
		if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			toolCalls = append(toolCalls, RawToolCall{
				ID:        toolUse.ID,
				Name:      toolUse.Name,
				Arguments: string(toolUse.Input),
			})
		}
	}

	return toolCalls
}
