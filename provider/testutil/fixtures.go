package testutil

import (
	"context"
	"fmt"
	"strings"

	"tether/model"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		model.SystemMessage("You are a helpful assistant."),
		model.UserMessage("Hello, how are you?"),
		{Role: model.RoleAssistant, Content: "I'm doing well, thank you!"},
		model.UserMessage("Can you help me with a task?"),
	}
}

// SingleUserMessage returns a system prompt and one user message
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		model.SystemMessage("You are a helpful assistant."),
		model.UserMessage(content),
	}
}

// EchoTool returns a tool that echoes its "text" argument.
func EchoTool() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "echo",
		Description: "Echo the given text back",
		Parameters: model.ObjectSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Text to echo"},
		}, "text"),
		Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
			text, _ := args["text"].(string)
			return model.TextResult(text), nil
		},
	}
}

// UpperTool returns a tool that upper-cases its "text" argument.
func UpperTool() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "upper",
		Description: "Upper-case the given text",
		Parameters: model.ObjectSchema(map[string]any{
			"text": map[string]any{"type": "string"},
		}, "text"),
		Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
			text, _ := args["text"].(string)
			return model.TextResult(strings.ToUpper(text)), nil
		},
	}
}

// FailingTool returns a tool whose Execute returns err.
func FailingTool(name string, err error) model.ToolDefinition {
	return model.ToolDefinition{
		Name:        name,
		Description: "Always fails",
		Parameters:  model.ObjectSchema(map[string]any{}),
		Execute: func(context.Context, map[string]any) (model.ToolResult, error) {
			return model.ToolResult{}, err
		},
	}
}

// PanickingTool returns a tool whose Execute panics.
func PanickingTool(name string) model.ToolDefinition {
	return model.ToolDefinition{
		Name:        name,
		Description: "Always panics",
		Parameters:  model.ObjectSchema(map[string]any{}),
		Execute: func(context.Context, map[string]any) (model.ToolResult, error) {
			panic(fmt.Sprintf("%s exploded", name))
		},
	}
}

// SSEFrame formats one server-sent event data line.
func SSEFrame(data string) string {
	return "data: " + data + "\n\n"
}

// TextChunk returns a chat.completion.chunk frame carrying a text delta.
func TextChunk(text string) string {
	return SSEFrame(fmt.Sprintf(`{"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":%q}}]}`, text))
}

// ToolChunk returns a chunk frame carrying one tool-call fragment. Empty id
// and name are left out, as servers do after the first fragment.
func ToolChunk(index int, id, name, args string) string {
	fn := fmt.Sprintf(`"arguments":%q`, args)
	if name != "" {
		fn = fmt.Sprintf(`"name":%q,`, name) + fn
	}
	call := fmt.Sprintf(`"index":%d,"type":"function","function":{%s}`, index, fn)
	if id != "" {
		call = fmt.Sprintf(`"id":%q,`, id) + call
	}
	return SSEFrame(fmt.Sprintf(`{"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{%s}]}}]}`, call))
}

// DoneFrame is the end-of-stream sentinel.
func DoneFrame() string {
	return SSEFrame("[DONE]")
}
