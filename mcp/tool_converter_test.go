package mcp

import (
	"encoding/json"
	"strings"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func searchTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "search_files",
		Description: "Search for files in a directory",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path":      map[string]any{"type": "string", "description": "Directory path to search"},
				"recursive": map[string]any{"type": "boolean"},
				"mode":      map[string]any{"type": "string", "enum": []any{"glob", "regex"}},
				"limit":     map[string]any{"type": []any{"number", "null"}},
			},
			Required: []string{"path"},
		},
	}
}

func TestConvertMCPToolsToOllama(t *testing.T) {
	if got := ConvertMCPToolsToOllama(nil); got != nil {
		t.Errorf("empty input should give nil, got %v", got)
	}

	result := ConvertMCPToolsToOllama([]mcptypes.Tool{searchTool()})
	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}

	tool := result[0]
	if tool.Type != "function" || tool.Function.Name != "search_files" {
		t.Errorf("tool = %+v", tool)
	}

	params := tool.Function.Parameters
	if params.Type != "object" || len(params.Required) != 1 || len(params.Properties) != 4 {
		t.Errorf("parameters = %+v", params)
	}
	if p := params.Properties["path"]; len(p.Type) != 1 || p.Type[0] != "string" || p.Description != "Directory path to search" {
		t.Errorf("path property = %+v", p)
	}
	if p := params.Properties["mode"]; len(p.Enum) != 2 {
		t.Errorf("enum not converted: %+v", p)
	}
	if p := params.Properties["limit"]; len(p.Type) != 2 || p.Type[1] != "null" {
		t.Errorf("union type not converted: %+v", p)
	}
}

func TestConvertPropertyValue(t *testing.T) {
	type typed struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	}

	tests := []struct {
		name     string
		input    any
		wantType string
		wantDesc string
	}{
		{"map", map[string]any{"type": "integer", "description": "count"}, "integer", "count"},
		{"struct through json", typed{Type: "string", Description: "via json"}, "string", "via json"},
		{"anyOf only", map[string]any{"anyOf": []any{map[string]any{"type": "string"}}}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertPropertyValue(tt.input)
			gotType := ""
			if len(got.Type) > 0 {
				gotType = got.Type[0]
			}
			if gotType != tt.wantType || got.Description != tt.wantDesc {
				t.Errorf("got type %q desc %q", gotType, got.Description)
			}
		})
	}

	if got := convertPropertyValue(map[string]any{"anyOf": []any{map[string]any{"type": "string"}}}); len(got.AnyOf) != 1 {
		t.Errorf("anyOf = %+v", got.AnyOf)
	}
}

func TestConvertMCPToolsToOpenAIFormat(t *testing.T) {
	if ConvertMCPToolsToOpenAIFormat(nil) != nil {
		t.Error("empty input should give nil")
	}

	result := ConvertMCPToolsToOpenAIFormat([]mcptypes.Tool{searchTool()})
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"type":"function"`, `"name":"search_files"`, `"required":["path"]`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("encoded tools missing %s: %s", want, data)
		}
	}
}

func TestConvertMCPToolsToAnthropicFormat(t *testing.T) {
	if ConvertMCPToolsToAnthropicFormat(nil) != nil {
		t.Error("empty input should give nil")
	}

	tool := searchTool()
	tool.InputSchema.Defs = map[string]any{"Mode": map[string]any{"type": "string"}}
	result := ConvertMCPToolsToAnthropicFormat([]mcptypes.Tool{tool})
	if len(result) != 1 || result[0].OfTool == nil {
		t.Fatalf("result = %+v", result)
	}
	if result[0].OfTool.Name != "search_files" {
		t.Errorf("name = %q", result[0].OfTool.Name)
	}
	if _, ok := result[0].OfTool.InputSchema.ExtraFields["$defs"]; !ok {
		t.Error("$defs not carried over")
	}
}
