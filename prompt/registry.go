package prompt

import (
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"tether/filestore"
	"tether/frontmatter"
	"tether/model"
)

// Dir is the file store directory prompt templates are loaded from.
const Dir = "/.prompts"

// Registry holds prompt templates by name. Later registrations replace
// earlier ones with the same name.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]model.PromptTemplate
	logger    *slog.Logger
}

// NewRegistry creates a registry seeded with templates.
func NewRegistry(logger *slog.Logger, templates ...model.PromptTemplate) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{
		templates: make(map[string]model.PromptTemplate),
		logger:    logger.With("component", "prompt"),
	}
	for _, t := range templates {
		r.Add(t)
	}
	return r
}

// Add registers a template. Templates without a name are ignored.
func (r *Registry) Add(t model.PromptTemplate) {
	if t.Name == "" {
		r.logger.Warn("skipping prompt template without a name")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
}

// Get looks a template up by name.
func (r *Registry) Get(name string) (model.PromptTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// List returns every template.
func (r *Registry) List() []model.PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.PromptTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	return out
}

// Expand expands a /name command. It returns false for plain text and for a
// command with no matching template; callers then use the input unchanged.
func (r *Registry) Expand(input string) (string, bool) {
	name, rest, ok := SplitCommand(input)
	if !ok {
		return "", false
	}
	t, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return Substitute(t.Body, Tokenize(rest)), true
}

// LoadFromStore registers every .md template under Dir. The file name
// (without extension) is used when the front matter has no name.
func (r *Registry) LoadFromStore(fs *filestore.Store) int {
	loaded := 0
	for _, p := range fs.List(Dir + "/") {
		if !strings.HasSuffix(p, ".md") {
			continue
		}
		src, _ := fs.Read(p)

		var t model.PromptTemplate
		body, err := frontmatter.Parse(src, &t)
		switch {
		case err == nil:
			t.Body = body
		case strings.HasPrefix(src, "---"):
			r.logger.Warn("failed to load prompt template", "path", p, "err", err)
			continue
		default:
			// A plain markdown file is a template with no description.
			t.Body = src
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(path.Base(p), ".md")
		}
		r.Add(t)
		loaded++
	}
	return loaded
}
