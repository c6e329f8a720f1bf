package mcp

import (
	"context"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tether/model"
)

// toolSeparator joins server and tool names. Dots are rejected by the
// OpenAI and Anthropic tool name pattern.
const toolSeparator = "__"

// NamespacedName returns the name a server's tool is offered under.
func NamespacedName(server, tool string) string {
	return server + toolSeparator + tool
}

// ParseToolName splits a namespaced tool name into server and tool.
func ParseToolName(namespacedName string) (string, string) {
	idx := strings.Index(namespacedName, toolSeparator)
	if idx == -1 {
		return "", namespacedName
	}
	return namespacedName[:idx], namespacedName[idx+len(toolSeparator):]
}

// ToolDefinitions wraps the tools of a running server as tool definitions
// whose Execute calls back into the server.
func (pm *ProcessManager) ToolDefinitions(server string) ([]model.ToolDefinition, error) {
	tools, err := pm.Tools(server)
	if err != nil {
		return nil, err
	}

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		toolName := tool.Name
		defs = append(defs, model.ToolDefinition{
			Name:        NamespacedName(server, toolName),
			Description: tool.Description,
			Parameters:  schemaToParameters(tool.InputSchema),
			Execute: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
				return pm.CallTool(ctx, server, toolName, args)
			},
		})
	}
	return defs, nil
}

func schemaToParameters(schema mcptypes.ToolInputSchema) map[string]any {
	params := map[string]any{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if params["type"] == "" {
		params["type"] = "object"
	}
	if schema.Properties == nil {
		params["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	if schema.Defs != nil {
		params["$defs"] = schema.Defs
	}
	return params
}
