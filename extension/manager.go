package extension

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tether/filestore"
	"tether/mcp"
	"tether/model"
)

// Servers runs the MCP servers behind manifest extensions.
// *mcp.ProcessManager implements it.
type Servers interface {
	Start(ctx context.Context, cfg mcp.ServerConfig) ([]mcptypes.Tool, error)
	Stop(ctx context.Context, name string) error
	ToolDefinitions(name string) ([]model.ToolDefinition, error)
	Shutdown(ctx context.Context) error
}

type loaded struct {
	manifest Manifest
	static   bool
}

// Manager loads manifest extensions into a Registry.
type Manager struct {
	registry *Registry
	servers  Servers
	logger   *slog.Logger

	mu     sync.Mutex
	loaded map[string]loaded
}

// NewManager creates a manager registering tools into registry.
func NewManager(registry *Registry, servers Servers, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		registry: registry,
		servers:  servers,
		logger:   logger.With("component", "extension"),
		loaded:   make(map[string]loaded),
	}
}

// Owner is the registry owner name of a manifest extension.
func Owner(name string) string {
	return "mcp:" + name
}

// Add parses source, starts its server and registers the server's tools.
// On success the manifest is written to fs (when non-nil) so it is reloaded
// next session. Nothing is registered when any step fails.
func (m *Manager) Add(ctx context.Context, source string, fs *filestore.Store) (string, error) {
	manifest, err := ParseManifest(source)
	if err != nil {
		return "", err
	}
	if err := m.load(ctx, manifest, false); err != nil {
		return "", err
	}
	if fs != nil {
		fs.Write(manifest.Path(), source)
	}
	return manifest.Name, nil
}

// AddStatic loads a manifest from configuration. Static extensions are not
// written to the file store.
func (m *Manager) AddStatic(ctx context.Context, manifest Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	return m.load(ctx, manifest, true)
}

func (m *Manager) load(ctx context.Context, manifest Manifest, static bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.loaded[manifest.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateExtension, manifest.Name)
	}

	if _, err := m.servers.Start(ctx, manifest.ServerConfig()); err != nil {
		return fmt.Errorf("failed to start extension %s: %w", manifest.Name, err)
	}
	defs, err := m.servers.ToolDefinitions(manifest.Name)
	if err != nil {
		_ = m.servers.Stop(ctx, manifest.Name)
		return fmt.Errorf("failed to list tools of extension %s: %w", manifest.Name, err)
	}

	api := m.registry.Scoped(Owner(manifest.Name))
	for _, def := range defs {
		api.RegisterTool(def)
	}
	m.loaded[manifest.Name] = loaded{manifest: manifest, static: static}
	m.logger.Info("extension loaded", "name", manifest.Name, "tools", len(defs), "static", static)
	return nil
}

// Remove unregisters the extension's tools, stops its server and deletes its
// persisted manifest.
func (m *Manager) Remove(ctx context.Context, name string, fs *filestore.Store) error {
	m.mu.Lock()
	l, ok := m.loaded[name]
	if ok {
		delete(m.loaded, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExtension, name)
	}

	m.registry.RemoveOwner(Owner(name))
	if fs != nil && !l.static {
		fs.Delete(l.manifest.Path())
	}
	if err := m.servers.Stop(ctx, name); err != nil && !errors.Is(err, mcp.ErrNotRunning) {
		return fmt.Errorf("failed to stop extension %s: %w", name, err)
	}
	return nil
}

// LoadFromStore loads every manifest persisted under Dir. Failures are logged
// per file and do not stop the others. It returns the number loaded.
func (m *Manager) LoadFromStore(ctx context.Context, fs *filestore.Store) int {
	count := 0
	for _, path := range fs.List(Dir + "/") {
		if !strings.HasSuffix(path, ".toml") {
			continue
		}
		src, _ := fs.Read(path)
		manifest, err := ParseManifest(src)
		if err != nil {
			m.logger.Warn("failed to load extension", "path", path, "err", err)
			continue
		}
		if err := m.load(ctx, manifest, false); err != nil {
			m.logger.Warn("failed to load extension", "path", path, "err", err)
			continue
		}
		count++
	}
	return count
}

// Names lists loaded extensions, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown unregisters and stops every extension server.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for name := range m.loaded {
		m.registry.RemoveOwner(Owner(name))
	}
	m.loaded = make(map[string]loaded)
	m.mu.Unlock()

	return m.servers.Shutdown(ctx)
}
