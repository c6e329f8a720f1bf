package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ExecuteFunc runs a tool with already-parsed arguments.
type ExecuteFunc func(ctx context.Context, args map[string]any) (ToolResult, error)

// ToolDefinition is a callable tool offered to the model.
//
// Definitions are not deduplicated by name: every definition is offered and
// the first one whose name matches wins at dispatch.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON schema object describing the arguments.
	Parameters map[string]any
	Execute    ExecuteFunc
}

// MCPTool converts the definition to the mcp-go tool shape used by the
// provider schema converters.
func (d ToolDefinition) MCPTool() mcptypes.Tool {
	schema := mcptypes.ToolInputSchema{Type: "object", Properties: map[string]any{}}
	if d.Parameters != nil {
		if t, ok := d.Parameters["type"].(string); ok && t != "" {
			schema.Type = t
		}
		if props, ok := d.Parameters["properties"].(map[string]any); ok {
			schema.Properties = props
		}
		switch req := d.Parameters["required"].(type) {
		case []string:
			schema.Required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		if defs, ok := d.Parameters["$defs"].(map[string]any); ok {
			schema.Defs = defs
		}
	}

	return mcptypes.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: schema,
	}
}

// MCPTools converts a tool set for the schema converters.
func MCPTools(defs []ToolDefinition) []mcptypes.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]mcptypes.Tool, len(defs))
	for i, d := range defs {
		tools[i] = d.MCPTool()
	}
	return tools
}

// FindTool returns the first definition with the given name.
func FindTool(defs []ToolDefinition, name string) (ToolDefinition, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return ToolDefinition{}, false
}

// ObjectSchema builds a JSON schema object from property definitions.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
