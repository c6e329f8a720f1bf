// Package agent owns the conversation. It keeps the message history of the
// active thread, composes the tool set from built-ins, extensions and skills,
// drives the provider client one turn at a time and persists threads and the
// shared file store.
//
// Typical use:
//
//	a, err := agent.New(ctx, agent.Options{Client: client, Persistence: store})
//	if err != nil {
//		return err
//	}
//	defer a.Close(ctx)
//
//	turn := a.Prompt(ctx, "Build me a website")
//	for ev, err := range turn.Events() {
//		...
//	}
//
// An Agent is not safe for concurrent use, with the exception of Abort.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"tether/extension"
	"tether/filestore"
	"tether/mcp"
	"tether/model"
	"tether/prompt"
	"tether/provider"
	"tether/skills"
	"tether/storage"
)

// DefaultSystemPrompt is used when Options.SystemPrompt is empty.
const DefaultSystemPrompt = `You are a coding assistant working inside a virtual file system.
Use the file tools to read and write files. Paths always start with "/".
Keep answers short and show code in fenced blocks.`

const defaultNamespace = "tether"

var (
	ErrUnknownThread   = errors.New("unknown thread")
	ErrTurnNotConsumed = errors.New("turn result requested before its events were consumed")
)

// InputHandler answers out-of-band questions asked by extensions.
type InputHandler func(ctx context.Context, prompt string) (string, error)

// Options configures an Agent.
type Options struct {
	// Client is required.
	Client *provider.Client
	// Persistence defaults to in-memory stores under Namespace.
	Persistence *storage.Persistence
	Namespace   string

	SystemPrompt string

	// Extensions and Manifests are the static extensions. They are loaded at
	// startup and again after Reset.
	Extensions []extension.Extension
	Manifests  []extension.Manifest
	// Servers runs manifest extensions. Defaults to an mcp.ProcessManager.
	Servers extension.Servers

	Skills  []model.Skill
	Prompts []model.PromptTemplate

	InputHandler InputHandler
	Logger       *slog.Logger
}

// Agent is the conversation orchestrator.
type Agent struct {
	opts   Options
	client *provider.Client
	store  *storage.Persistence
	logger *slog.Logger

	fs         *filestore.Store
	skills     *skills.Registry
	prompts    *prompt.Registry
	extensions *extension.Registry
	manager    *extension.Manager

	messages []model.Message
	threads  []model.ThreadMeta
	active   string

	mu     sync.Mutex
	cancel context.CancelFunc
	turnID uint64
}

// New builds an agent and restores the persisted state: the file store
// snapshot, dynamic skills, templates and extensions found in it, the thread
// list and the active thread's history.
func New(ctx context.Context, opts Options) (*Agent, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("agent: a provider client is required")
	}
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store := opts.Persistence
	if store == nil {
		store = storage.NewMemory(opts.Namespace, logger)
	}
	servers := opts.Servers
	if servers == nil {
		servers = mcp.NewProcessManager(logger)
	}

	a := &Agent{
		opts:   opts,
		client: opts.Client,
		store:  store,
		logger: logger.With("component", "agent"),
		fs:     filestore.New(),
		skills: skills.NewRegistry(logger),
	}
	a.extensions = extension.NewRegistry(a, logger)
	a.manager = extension.NewManager(a.extensions, servers, logger)

	files, err := store.LoadFiles(ctx)
	if err != nil {
		a.logger.Warn("failed to load file store", "err", err)
	}
	a.fs.Load(files)

	a.loadRegistries(ctx)

	a.threads = store.LoadThreads()
	if len(a.threads) == 0 {
		if _, err := a.createThread(); err != nil {
			return nil, err
		}
		return a, nil
	}

	active := store.ActiveThread()
	if a.threadIndex(active) < 0 {
		active = a.threads[len(a.threads)-1].ID
	}
	if err := a.activate(ctx, active); err != nil {
		return nil, err
	}
	return a, nil
}

// loadRegistries fills the skill, template and extension registries from
// the options and from the file store.
func (a *Agent) loadRegistries(ctx context.Context) {
	for _, s := range a.opts.Skills {
		a.skills.Add(s)
	}
	a.skills.LoadFromStore(a.fs)

	a.prompts = prompt.NewRegistry(a.opts.Logger, a.opts.Prompts...)
	a.prompts.LoadFromStore(a.fs)

	for i, ext := range a.opts.Extensions {
		if err := a.extensions.Load("static:"+strconv.Itoa(i), ext); err != nil {
			a.logger.Warn("failed to load extension", "err", err)
		}
	}
	for _, m := range a.opts.Manifests {
		if err := a.manager.AddStatic(ctx, m); err != nil {
			a.logger.Warn("failed to load extension", "name", m.Name, "err", err)
		}
	}
	a.manager.LoadFromStore(ctx, a.fs)
}

// FS returns the file store shared by all threads.
func (a *Agent) FS() *filestore.Store {
	return a.fs
}

// Skills returns the skill registry.
func (a *Agent) Skills() *skills.Registry {
	return a.skills
}

// Prompts returns the template registry.
func (a *Agent) Prompts() *prompt.Registry {
	return a.prompts
}

// Extensions returns the extension registry.
func (a *Agent) Extensions() *extension.Registry {
	return a.extensions
}

// LoadExtension registers ext for the lifetime of the agent. Unlike static
// extensions it does not survive Reset.
func (a *Agent) LoadExtension(owner string, ext extension.Extension) error {
	return a.extensions.Load(owner, ext)
}

// Tools returns the tool set offered on the next turn.
func (a *Agent) Tools() []model.ToolDefinition {
	tools := a.builtinTools()
	tools = append(tools, a.extensions.Tools()...)
	if a.skills.Len() > 0 {
		tools = append(tools, a.skills.LoaderTool())
	}
	return tools
}

func (a *Agent) systemPrompt() string {
	fragment := a.skills.Fragment()
	if fragment == "" {
		return a.opts.SystemPrompt
	}
	return a.opts.SystemPrompt + "\n\n" + fragment
}

// RequestInput forwards an extension's question to Options.InputHandler.
func (a *Agent) RequestInput(ctx context.Context, question string) (string, error) {
	if a.opts.InputHandler == nil {
		return "", extension.ErrNoInputHandler
	}
	return a.opts.InputHandler(ctx, question)
}

// AddExtension loads a manifest extension and persists it in the file store.
func (a *Agent) AddExtension(ctx context.Context, source string) (string, error) {
	name, err := a.manager.Add(ctx, source, a.fs)
	if err != nil {
		return "", err
	}
	a.saveFiles(ctx)
	return name, nil
}

// RemoveExtension unloads a manifest extension.
func (a *Agent) RemoveExtension(ctx context.Context, name string) error {
	if err := a.manager.Remove(ctx, name, a.fs); err != nil {
		return err
	}
	a.saveFiles(ctx)
	return nil
}

// ExtensionNames lists the loaded manifest extensions.
func (a *Agent) ExtensionNames() []string {
	return a.manager.Names()
}

// Abort cancels the in-flight turn. It is a no-op when no turn is running.
func (a *Agent) Abort() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// beginTurn installs a fresh cancellation, replacing any previous one.
func (a *Agent) beginTurn(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	a.mu.Lock()
	a.turnID++
	id := a.turnID
	a.cancel = cancel
	a.mu.Unlock()

	return ctx, func() {
		cancel()
		a.mu.Lock()
		if a.turnID == id {
			a.cancel = nil
		}
		a.mu.Unlock()
	}
}

// Close persists the active thread, stops extension servers and closes the
// stores.
func (a *Agent) Close(ctx context.Context) error {
	var errs []error
	if err := a.persist(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.manager.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// persist saves the active thread's history, bumps its UpdatedAt and saves
// the thread list and the file store.
func (a *Agent) persist(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	if err := a.store.SaveMessages(ctx, a.active, a.messages); err != nil {
		return fmt.Errorf("failed to save thread %s: %w", a.active, err)
	}
	if i := a.threadIndex(a.active); i >= 0 {
		a.threads[i].UpdatedAt = now()
	}
	if err := a.store.SaveThreads(a.threads); err != nil {
		return fmt.Errorf("failed to save thread list: %w", err)
	}
	if err := a.store.SaveFiles(ctx, a.fs.Snapshot()); err != nil {
		return fmt.Errorf("failed to save files: %w", err)
	}
	return nil
}

func (a *Agent) saveFiles(ctx context.Context) {
	if err := a.store.SaveFiles(context.WithoutCancel(ctx), a.fs.Snapshot()); err != nil {
		a.logger.Warn("failed to save files", "err", err)
	}
}

func (a *Agent) hasUserMessage() bool {
	for _, msg := range a.messages {
		if msg.Role == model.RoleUser {
			return true
		}
	}
	return false
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
