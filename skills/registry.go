// Package skills holds on-demand instruction documents. Only the name and
// description of each skill are advertised in the system prompt; the model
// fetches the full content through the generated load_skill tool.
package skills

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"tether/filestore"
	"tether/model"
)

// LoaderToolName is the name of the generated skill loader tool.
const LoaderToolName = "load_skill"

// Dir is the file store directory dynamic skills are persisted under.
const Dir = "/.skills"

// Registry stores skills in registration order. Names are unique.
type Registry struct {
	mu     sync.RWMutex
	skills []model.Skill
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger discards warnings.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{logger: logger.With("component", "skills")}
}

// Add registers a skill. Skills with missing fields are skipped and
// duplicate names are rejected, keeping the first; both log a warning and
// return false rather than failing.
func (r *Registry) Add(s model.Skill) bool {
	if err := Validate(s); err != nil {
		r.logger.Warn("skipping skill", "err", err)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.skills {
		if existing.Name == s.Name {
			r.logger.Warn("duplicate skill ignored", "name", s.Name)
			return false
		}
	}
	r.skills = append(r.skills, s)
	return true
}

// Remove unregisters a skill by name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.skills {
		if s.Name == name {
			r.skills = append(r.skills[:i], r.skills[i+1:]...)
			return true
		}
	}
	return false
}

// Get looks a skill up by name.
func (r *Registry) Get(name string) (model.Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.skills {
		if s.Name == name {
			return s, true
		}
	}
	return model.Skill{}, false
}

// List returns the skills in registration order.
func (r *Registry) List() []model.Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Skill(nil), r.skills...)
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.skills))
	for i, s := range r.skills {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of registered skills.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Clear removes every skill.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills = nil
}

// Fragment renders the system prompt section advertising the skills.
// It is empty when no skill is registered.
func (r *Registry) Fragment() string {
	skills := r.List()
	if len(skills) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("The following skills provide specialized instructions for specific tasks.\n")
	sb.WriteString("Use the " + LoaderToolName + " tool to load a skill's full content when the task matches its description.\n\n")
	sb.WriteString("<available_skills>\n")
	for _, s := range skills {
		sb.WriteString("  <skill>\n")
		sb.WriteString("    <name>" + html.EscapeString(s.Name) + "</name>\n")
		sb.WriteString("    <description>" + html.EscapeString(s.Description) + "</description>\n")
		sb.WriteString("  </skill>\n")
	}
	sb.WriteString("</available_skills>")
	return sb.String()
}

// LoaderTool builds the tool that returns a skill's content by name.
func (r *Registry) LoaderTool() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        LoaderToolName,
		Description: "Load the full instructions of a skill listed in <available_skills>.",
		Parameters: model.ObjectSchema(map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "The skill name",
			},
		}, "name"),
		Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
			name, _ := args["name"].(string)
			if s, ok := r.Get(name); ok {
				return model.TextResult(s.Content), nil
			}
			names := r.Names()
			sort.Strings(names)
			return model.ErrorResult(fmt.Sprintf("Skill %q not found. Available skills: %s",
				name, strings.Join(names, ", "))), nil
		},
	}
}

// Save persists a skill to the file store so it reloads next session.
func Save(fs *filestore.Store, s model.Skill) error {
	if err := Validate(s); err != nil {
		return err
	}
	src, err := Marshal(s)
	if err != nil {
		return err
	}
	fs.Write(FileName(Dir, s.Name), src)
	return nil
}

// LoadFromStore registers every skill persisted under Dir. A file that fails
// to parse is logged and skipped. It returns the number of skills added.
func (r *Registry) LoadFromStore(fs *filestore.Store) int {
	added := 0
	for _, path := range fs.List(Dir + "/") {
		if !strings.HasSuffix(path, ".md") {
			continue
		}
		src, _ := fs.Read(path)
		s, err := Parse(src)
		if err != nil {
			r.logger.Warn("failed to load skill", "path", path, "err", err)
			continue
		}
		if r.Add(s) {
			added++
		}
	}
	return added
}
