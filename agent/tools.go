package agent

import (
	"context"
	"fmt"
	"strings"

	"tether/extension"
	"tether/filestore"
	"tether/model"
	"tether/skills"
)

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// builtinTools are the file store and self-extension tools every turn gets.
func (a *Agent) builtinTools() []model.ToolDefinition {
	return []model.ToolDefinition{
		{
			Name:        "read_file",
			Description: "Read a file from the virtual file system.",
			Parameters: model.ObjectSchema(map[string]any{
				"path": map[string]any{"type": "string", "description": "Absolute file path"},
			}, "path"),
			Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
				path := filestore.Normalize(stringArg(args, "path"))
				content, ok := a.fs.Read(path)
				if !ok {
					return model.ErrorResult("File not found: " + path), nil
				}
				return model.TextResult(content), nil
			},
		},
		{
			Name:        "write_file",
			Description: "Create or overwrite a file in the virtual file system.",
			Parameters: model.ObjectSchema(map[string]any{
				"path":    map[string]any{"type": "string", "description": "Absolute file path"},
				"content": map[string]any{"type": "string", "description": "Full file content"},
			}, "path", "content"),
			Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
				path := filestore.Normalize(stringArg(args, "path"))
				if path == "/" {
					return model.ErrorResult("A file path is required"), nil
				}
				content := stringArg(args, "content")
				a.fs.Write(path, content)
				return model.TextResult(fmt.Sprintf("Wrote %d bytes to %s", len(content), path)), nil
			},
		},
		{
			Name:        "list_files",
			Description: "List files in the virtual file system, optionally under a directory.",
			Parameters: model.ObjectSchema(map[string]any{
				"prefix": map[string]any{"type": "string", "description": "Directory to list, defaults to /"},
			}),
			Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
				prefix := filestore.Normalize(stringArg(args, "prefix"))
				paths := a.fs.List(prefix)
				if len(paths) == 0 {
					return model.TextResult("No files"), nil
				}
				return model.TextResult(strings.Join(paths, "\n")), nil
			},
		},
		{
			Name:        "delete_file",
			Description: "Delete a file from the virtual file system.",
			Parameters: model.ObjectSchema(map[string]any{
				"path": map[string]any{"type": "string", "description": "Absolute file path"},
			}, "path"),
			Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
				path := filestore.Normalize(stringArg(args, "path"))
				if !a.fs.Delete(path) {
					return model.ErrorResult("File not found: " + path), nil
				}
				return model.TextResult("Deleted " + path), nil
			},
		},
		{
			Name:        "create_skill",
			Description: "Save reusable instructions as a skill. Skills are listed in the system prompt on later turns and loaded with " + skills.LoaderToolName + ".",
			Parameters: model.ObjectSchema(map[string]any{
				"name":        map[string]any{"type": "string", "description": "Short unique skill name"},
				"description": map[string]any{"type": "string", "description": "When the skill applies"},
				"content":     map[string]any{"type": "string", "description": "The instructions, in markdown"},
			}, "name", "description", "content"),
			Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
				s := model.Skill{
					Name:        stringArg(args, "name"),
					Description: stringArg(args, "description"),
					Content:     stringArg(args, "content"),
				}
				if err := skills.Validate(s); err != nil {
					return model.ErrorResult(err.Error()), nil
				}
				if _, exists := a.skills.Get(s.Name); exists {
					return model.ErrorResult(fmt.Sprintf("Skill %q already exists", s.Name)), nil
				}
				if err := skills.Save(a.fs, s); err != nil {
					return model.ErrorResult(err.Error()), nil
				}
				a.skills.Add(s)
				return model.TextResult("Created skill " + s.Name), nil
			},
		},
		{
			Name: "add_extension",
			Description: "Load an MCP server as an extension. The manifest is TOML with name and " +
				"either command (plus args, env) or url (plus transport, headers). Its tools are available from the next turn.",
			Parameters: model.ObjectSchema(map[string]any{
				"manifest": map[string]any{"type": "string", "description": "TOML manifest"},
			}, "manifest"),
			Execute: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
				name, err := a.AddExtension(ctx, stringArg(args, "manifest"))
				if err != nil {
					return model.ErrorResult(err.Error()), nil
				}
				return model.TextResult("Loaded extension " + name), nil
			},
		},
		{
			Name:        "remove_extension",
			Description: "Unload an extension added with add_extension.",
			Parameters: model.ObjectSchema(map[string]any{
				"name": map[string]any{"type": "string"},
			}, "name"),
			Execute: func(ctx context.Context, args map[string]any) (model.ToolResult, error) {
				name := stringArg(args, "name")
				if err := a.RemoveExtension(ctx, name); err != nil {
					return model.ErrorResult(fmt.Sprintf("%v. Loaded extensions: %s",
						err, joinNames(a.manager.Names()))), nil
				}
				return model.TextResult("Removed extension " + name), nil
			},
		},
	}
}

var _ extension.Host = (*Agent)(nil)
