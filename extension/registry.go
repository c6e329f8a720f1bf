package extension

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"tether/filestore"
	"tether/model"
)

type ownedTool struct {
	owner string
	def   model.ToolDefinition
}

type ownedHandler struct {
	owner   string
	handler EventHandler
}

// Registry holds the tools and event handlers registered by extensions.
type Registry struct {
	mu       sync.RWMutex
	tools    []ownedTool
	handlers []ownedHandler
	host     Host
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. host may be nil, in which case the
// host capabilities report errors.
func NewRegistry(host Host, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{host: host, logger: logger.With("component", "extension")}
}

// Load registers ext under owner. When Register fails, anything it managed
// to register before failing is removed again.
func (r *Registry) Load(owner string, ext Extension) error {
	if err := ext.Register(r.Scoped(owner)); err != nil {
		r.RemoveOwner(owner)
		return fmt.Errorf("failed to load extension %s: %w", owner, err)
	}
	r.logger.Debug("extension loaded", "owner", owner)
	return nil
}

// Scoped returns an API that tags every registration with owner.
func (r *Registry) Scoped(owner string) API {
	return &scopedAPI{registry: r, owner: owner}
}

// Tools returns all registered tools in registration order.
func (r *Registry) Tools() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]model.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.def
	}
	return defs
}

// Owners lists every owner that has registered something, sorted.
func (r *Registry) Owners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	for _, t := range r.tools {
		seen[t.owner] = true
	}
	for _, h := range r.handlers {
		seen[h.owner] = true
	}
	owners := make([]string, 0, len(seen))
	for o := range seen {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners
}

// RemoveOwner unregisters everything owner registered.
func (r *Registry) RemoveOwner(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tools := r.tools[:0]
	for _, t := range r.tools {
		if t.owner != owner {
			tools = append(tools, t)
		}
	}
	r.tools = tools

	handlers := r.handlers[:0]
	for _, h := range r.handlers {
		if h.owner != owner {
			handlers = append(handlers, h)
		}
	}
	r.handlers = handlers
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = nil
	r.handlers = nil
}

// Emit delivers ev to every handler in registration order. A handler that
// panics is logged and skipped.
func (r *Registry) Emit(ev model.Event) {
	r.mu.RLock()
	handlers := append([]ownedHandler(nil), r.handlers...)
	r.mu.RUnlock()

	for _, h := range handlers {
		r.dispatch(h, ev)
	}
}

func (r *Registry) dispatch(h ownedHandler, ev model.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("event handler panicked", "owner", h.owner, "event", ev.Type, "panic", p)
		}
	}()
	h.handler(ev)
}

type scopedAPI struct {
	registry *Registry
	owner    string
}

func (s *scopedAPI) RegisterTool(def model.ToolDefinition) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.registry.tools = append(s.registry.tools, ownedTool{owner: s.owner, def: def})
}

func (s *scopedAPI) On(handler EventHandler) {
	if handler == nil {
		return
	}
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.registry.handlers = append(s.registry.handlers, ownedHandler{owner: s.owner, handler: handler})
}

func (s *scopedAPI) RequestInput(ctx context.Context, prompt string) (string, error) {
	if s.registry.host == nil {
		return "", ErrNoInputHandler
	}
	return s.registry.host.RequestInput(ctx, prompt)
}

func (s *scopedAPI) AddExtension(ctx context.Context, source string) (string, error) {
	if s.registry.host == nil {
		return "", fmt.Errorf("cannot add extensions without a host")
	}
	return s.registry.host.AddExtension(ctx, source)
}

func (s *scopedAPI) RemoveExtension(ctx context.Context, name string) error {
	if s.registry.host == nil {
		return fmt.Errorf("cannot remove extensions without a host")
	}
	return s.registry.host.RemoveExtension(ctx, name)
}

func (s *scopedAPI) FS() *filestore.Store {
	if s.registry.host == nil {
		return nil
	}
	return s.registry.host.FS()
}
