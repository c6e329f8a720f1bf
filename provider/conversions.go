package provider

import (
	"encoding/json"

	"github.com/ollama/ollama/api"

	"tether/model"
)

// ParseToolArguments parses JSON arguments into a map.
// Malformed or non-object input yields an empty map.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}

// wireMessage is the OpenAI-compatible chat message. Content is a pointer so
// that an assistant tool-call message serializes "content": null.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireToolFunction `json:"function"`
}

type wireToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ConvertToWireMessages converts history to the OpenAI-compatible wire shape.
//
//   - assistant with tool calls: content null plus tool_calls
//   - tool: content plus tool_call_id
//   - everything else: role and content only
func ConvertToWireMessages(messages []model.Message) []wireMessage {
	result := make([]wireMessage, len(messages))
	for i, msg := range messages {
		content := msg.Content
		switch {
		case msg.Role == model.RoleAssistant && len(msg.ToolCalls) > 0:
			calls := make([]wireToolCall, len(msg.ToolCalls))
			for j, call := range msg.ToolCalls {
				calls[j] = wireToolCall{
					ID:   call.ID,
					Type: "function",
					Function: wireToolFunction{
						Name:      call.Name,
						Arguments: encodeArguments(call.Arguments),
					},
				}
			}
			result[i] = wireMessage{Role: msg.Role, ToolCalls: calls}
		case msg.Role == model.RoleTool:
			result[i] = wireMessage{Role: msg.Role, Content: &content, ToolCallID: msg.ToolCallID}
		default:
			result[i] = wireMessage{Role: msg.Role, Content: &content}
		}
	}
	return result
}

func encodeArguments(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ConvertToOllamaMessages converts history to Ollama api.Message.
// Ollama has no tool-call ids; tool results are matched by position.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:      msg.Role,
			Content:   msg.Content,
			ToolCalls: ConvertFromProviderToolCalls(msg.ToolCalls),
		}
	}
	return result
}

// ConvertToProviderToolCalls converts Ollama tool calls to raw calls.
// Returns nil if the input is nil or empty.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []RawToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]RawToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = RawToolCall{
			Name:      call.Function.Name,
			Arguments: encodeArguments(map[string]any(call.Function.Arguments)),
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts tool calls to Ollama api.ToolCall.
// Returns nil if the input is nil or empty.
func ConvertFromProviderToolCalls(calls []model.ToolCall) []api.ToolCall {
	if len(calls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(calls))
	for i, call := range calls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}
