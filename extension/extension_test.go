package extension

import (
	"context"
	"errors"
	"strings"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tether/filestore"
	"tether/mcp"
	"tether/model"
)

func tool(name string) model.ToolDefinition {
	return model.ToolDefinition{
		Name: name,
		Execute: func(context.Context, map[string]any) (model.ToolResult, error) {
			return model.TextResult(name), nil
		},
	}
}

func toolNames(defs []model.ToolDefinition) string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return strings.Join(names, ",")
}

type fakeHost struct {
	fs     *filestore.Store
	answer string
}

func (h *fakeHost) RequestInput(_ context.Context, prompt string) (string, error) {
	return h.answer + ":" + prompt, nil
}
func (h *fakeHost) AddExtension(context.Context, string) (string, error) { return "", nil }
func (h *fakeHost) RemoveExtension(context.Context, string) error        { return nil }
func (h *fakeHost) FS() *filestore.Store                                  { return h.fs }

func TestRegistryScopedRemoval(t *testing.T) {
	r := NewRegistry(nil, nil)

	var aEvents, bEvents int
	if err := r.Load("a", Func(func(api API) error {
		api.RegisterTool(tool("a1"))
		api.RegisterTool(tool("a2"))
		api.On(func(model.Event) { aEvents++ })
		return nil
	})); err != nil {
		t.Fatal(err)
	}
	if err := r.Load("b", Func(func(api API) error {
		api.RegisterTool(tool("b1"))
		api.On(func(model.Event) { bEvents++ })
		return nil
	})); err != nil {
		t.Fatal(err)
	}

	if got := toolNames(r.Tools()); got != "a1,a2,b1" {
		t.Errorf("tools = %s", got)
	}
	if got := strings.Join(r.Owners(), ","); got != "a,b" {
		t.Errorf("owners = %s", got)
	}

	r.Emit(model.TextDelta("x"))
	r.RemoveOwner("a")
	r.Emit(model.TextDelta("y"))

	if got := toolNames(r.Tools()); got != "b1" {
		t.Errorf("tools after removal = %s", got)
	}
	if aEvents != 1 || bEvents != 2 {
		t.Errorf("events a=%d b=%d, want 1 and 2", aEvents, bEvents)
	}
}

func TestRegistryFailedLoadLeavesNothing(t *testing.T) {
	r := NewRegistry(nil, nil)
	boom := errors.New("boom")

	err := r.Load("broken", Func(func(api API) error {
		api.RegisterTool(tool("half"))
		return boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(r.Tools()) != 0 {
		t.Errorf("tools = %s", toolNames(r.Tools()))
	}
}

func TestRegistryEmitRecoversPanics(t *testing.T) {
	r := NewRegistry(nil, nil)
	var got []string
	_ = r.Load("x", Func(func(api API) error {
		api.On(func(model.Event) { panic("bad handler") })
		api.On(func(ev model.Event) { got = append(got, ev.Delta) })
		return nil
	}))

	r.Emit(model.TextDelta("hello"))
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("got %v", got)
	}
}

func TestScopedAPIHost(t *testing.T) {
	fs := filestore.New()
	r := NewRegistry(&fakeHost{fs: fs, answer: "yes"}, nil)
	api := r.Scoped("x")

	answer, err := api.RequestInput(context.Background(), "continue?")
	if err != nil || answer != "yes:continue?" {
		t.Errorf("RequestInput = %q, %v", answer, err)
	}
	if api.FS() != fs {
		t.Error("FS not passed through")
	}

	noHost := NewRegistry(nil, nil).Scoped("x")
	if _, err := noHost.RequestInput(context.Background(), "?"); !errors.Is(err, ErrNoInputHandler) {
		t.Errorf("err = %v", err)
	}
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"stdio", "name = \"fs\"\ncommand = \"npx\"\nargs = [\"-y\", \"server\"]\n", ""},
		{"remote", "name = \"web\"\nurl = \"http://localhost:9000/mcp\"\ntransport = \"streamable-http\"\n", ""},
		{"bad toml", "name = ", "failed to parse"},
		{"unknown key", "name = \"fs\"\ncommand = \"npx\"\ncolour = \"red\"\n", "unknown manifest keys"},
		{"bad name", "name = \"has space\"\ncommand = \"npx\"\n", "invalid extension name"},
		{"no server", "name = \"fs\"\n", "invalid extension fs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(tt.src)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

type fakeServers struct {
	tools    map[string][]string
	startErr error
	running  map[string]bool
}

func newFakeServers() *fakeServers {
	return &fakeServers{tools: map[string][]string{}, running: map[string]bool{}}
}

func (f *fakeServers) Start(_ context.Context, cfg mcp.ServerConfig) ([]mcptypes.Tool, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.running[cfg.Name] = true
	return nil, nil
}

func (f *fakeServers) Stop(_ context.Context, name string) error {
	if !f.running[name] {
		return mcp.ErrNotRunning
	}
	delete(f.running, name)
	return nil
}

func (f *fakeServers) ToolDefinitions(name string) ([]model.ToolDefinition, error) {
	var defs []model.ToolDefinition
	for _, t := range f.tools[name] {
		defs = append(defs, tool(mcp.NamespacedName(name, t)))
	}
	return defs, nil
}

func (f *fakeServers) Shutdown(context.Context) error {
	f.running = map[string]bool{}
	return nil
}

const githubManifest = "name = \"github\"\ncommand = \"github-mcp\"\n"

func TestManagerAddRemove(t *testing.T) {
	ctx := context.Background()
	servers := newFakeServers()
	servers.tools["github"] = []string{"issues", "prs"}
	reg := NewRegistry(nil, nil)
	m := NewManager(reg, servers, nil)
	fs := filestore.New()

	name, err := m.Add(ctx, githubManifest, fs)
	if err != nil {
		t.Fatal(err)
	}
	if name != "github" {
		t.Errorf("name = %q", name)
	}
	if got := toolNames(reg.Tools()); got != "github__issues,github__prs" {
		t.Errorf("tools = %s", got)
	}
	if src, ok := fs.Read("/.extensions/github.toml"); !ok || src != githubManifest {
		t.Errorf("manifest not persisted: %q %v", src, ok)
	}

	if _, err := m.Add(ctx, githubManifest, fs); !errors.Is(err, ErrDuplicateExtension) {
		t.Errorf("duplicate add = %v", err)
	}

	if err := m.Remove(ctx, "github", fs); err != nil {
		t.Fatal(err)
	}
	if len(reg.Tools()) != 0 || servers.running["github"] {
		t.Error("extension not fully removed")
	}
	if fs.Exists("/.extensions/github.toml") {
		t.Error("manifest still persisted")
	}
	if err := m.Remove(ctx, "github", fs); !errors.Is(err, ErrUnknownExtension) {
		t.Errorf("second remove = %v", err)
	}
}

func TestManagerAddFailureRegistersNothing(t *testing.T) {
	servers := newFakeServers()
	servers.startErr = errors.New("exec: not found")
	reg := NewRegistry(nil, nil)
	m := NewManager(reg, servers, nil)
	fs := filestore.New()

	if _, err := m.Add(context.Background(), githubManifest, fs); err == nil {
		t.Fatal("expected error")
	}
	if len(reg.Tools()) != 0 || fs.Len() != 0 || len(m.Names()) != 0 {
		t.Error("failed add left state behind")
	}
}

func TestManagerLoadFromStore(t *testing.T) {
	servers := newFakeServers()
	servers.tools["good"] = []string{"t"}
	reg := NewRegistry(nil, nil)
	m := NewManager(reg, servers, nil)

	fs := filestore.New()
	fs.Write("/.extensions/good.toml", "name = \"good\"\ncommand = \"x\"\n")
	fs.Write("/.extensions/broken.toml", "name = ")
	fs.Write("/.extensions/notes.txt", "ignored")

	if n := m.LoadFromStore(context.Background(), fs); n != 1 {
		t.Errorf("loaded %d, want 1", n)
	}
	if got := toolNames(reg.Tools()); got != "good__t" {
		t.Errorf("tools = %s", got)
	}
}

func TestManagerStaticNotPersisted(t *testing.T) {
	ctx := context.Background()
	servers := newFakeServers()
	reg := NewRegistry(nil, nil)
	m := NewManager(reg, servers, nil)
	fs := filestore.New()

	if err := m.AddStatic(ctx, Manifest{Name: "cfg", Command: "x"}); err != nil {
		t.Fatal(err)
	}
	if fs.Len() != 0 {
		t.Error("static extension persisted")
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if len(m.Names()) != 0 || len(servers.running) != 0 {
		t.Error("shutdown left extensions loaded")
	}
}
