package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tether/model"
)

// ErrNotRunning is returned for operations on a server that is not started.
var ErrNotRunning = errors.New("server not running")

// ProcessManager starts, tracks and stops MCP servers by name.
type ProcessManager struct {
	servers map[string]*Server
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewProcessManager creates an empty manager. A nil logger discards.
func NewProcessManager(logger *slog.Logger) *ProcessManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProcessManager{
		servers: make(map[string]*Server),
		logger:  logger.With("component", "mcp"),
	}
}

// Start launches or connects to the server described by cfg, initializes it
// and lists its tools.
func (pm *ProcessManager) Start(ctx context.Context, cfg ServerConfig) ([]mcptypes.Tool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pm.isRunning(cfg.Name) {
		return nil, fmt.Errorf("server %s already running", cfg.Name)
	}

	var (
		mcpClient *client.Client
		cmd       *exec.Cmd
		err       error
	)
	switch {
	case cfg.IsRemote():
		mcpClient, err = pm.createRemoteClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to remote server %s: %w", cfg.Name, err)
		}
		pm.logger.Debug("connected to remote server", "server", cfg.Name, "url", cfg.URL)
	default:
		mcpClient, cmd, err = pm.createLocalClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to start local server %s: %w", cfg.Name, err)
		}
	}

	return pm.attach(ctx, &Server{
		Name:     cfg.Name,
		Process:  cmd,
		Client:   mcpClient,
		IsRemote: cfg.IsRemote(),
	})
}

// Attach registers an already started client (for example an in-process
// server) under name, then initializes it and lists its tools.
func (pm *ProcessManager) Attach(ctx context.Context, name string, c *client.Client) ([]mcptypes.Tool, error) {
	if pm.isRunning(name) {
		return nil, fmt.Errorf("server %s already running", name)
	}
	return pm.attach(ctx, &Server{Name: name, Client: c})
}

func (pm *ProcessManager) attach(ctx context.Context, srv *Server) ([]mcptypes.Tool, error) {
	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcptypes.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "tether",
				Version: "1.0.0",
			},
		},
	}

	if _, err := srv.Client.Initialize(ctx, initReq); err != nil {
		pm.closeServer(ctx, srv)
		return nil, fmt.Errorf("failed to initialize server %s: %w", srv.Name, err)
	}

	toolsResult, err := srv.Client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		pm.closeServer(ctx, srv)
		return nil, fmt.Errorf("failed to list tools for %s: %w", srv.Name, err)
	}
	srv.Tools = toolsResult.Tools

	pm.mu.Lock()
	pm.servers[srv.Name] = srv
	pm.mu.Unlock()

	pm.logger.Info("server started", "server", srv.Name, "tools", len(srv.Tools))
	return srv.Tools, nil
}

func (pm *ProcessManager) isRunning(name string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	_, ok := pm.servers[name]
	return ok
}

// Stop closes the client and kills a local process.
func (pm *ProcessManager) Stop(ctx context.Context, name string) error {
	pm.mu.Lock()
	srv, exists := pm.servers[name]
	if !exists {
		pm.mu.Unlock()
		return fmt.Errorf("server %s: %w", name, ErrNotRunning)
	}
	// Remove from map immediately so it can't be used
	delete(pm.servers, name)
	pm.mu.Unlock()

	pm.closeServer(ctx, srv)
	pm.logger.Debug("server stopped", "server", name)
	return nil
}

// closeServer closes the client with a 1s timeout, then kills a local
// process if the close did not finish cleanly.
func (pm *ProcessManager) closeServer(ctx context.Context, srv *Server) {
	clientClosed := false
	if srv.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- srv.Client.Close()
		}()

		select {
		case err := <-closeDone:
			if err != nil {
				pm.logger.Debug("error closing client", "server", srv.Name, "err", err)
			} else {
				clientClosed = true
			}
		case <-closeCtx.Done():
			pm.logger.Debug("close timed out, killing process", "server", srv.Name)
		}
	}

	if !clientClosed && srv.Process != nil && srv.Process.Process != nil {
		if err := srv.Process.Process.Kill(); err != nil {
			pm.logger.Debug("error killing process", "server", srv.Name, "pid", srv.Process.Process.Pid, "err", err)
		}
	}
}

// Tools returns the tools a running server advertised at start.
func (pm *ProcessManager) Tools(name string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	srv, exists := pm.servers[name]
	if !exists {
		return nil, fmt.Errorf("server %s: %w", name, ErrNotRunning)
	}
	return srv.Tools, nil
}

// Running lists the names of running servers, sorted.
func (pm *ProcessManager) Running() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	names := make([]string, 0, len(pm.servers))
	for name := range pm.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool invokes tool on the named server and flattens the result.
func (pm *ProcessManager) CallTool(ctx context.Context, name, tool string, args map[string]any) (model.ToolResult, error) {
	pm.mu.RLock()
	srv, exists := pm.servers[name]
	pm.mu.RUnlock()
	if !exists {
		return model.ToolResult{}, fmt.Errorf("server %s: %w", name, ErrNotRunning)
	}

	res, err := srv.Client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      tool,
			Arguments: args,
		},
	})
	if err != nil {
		return model.ToolResult{}, fmt.Errorf("failed to call %s on %s: %w", tool, name, err)
	}
	return ConvertToolResult(res), nil
}

// ConvertToolResult joins the text content of an MCP result.
// Non-text content is noted by type.
func ConvertToolResult(res *mcptypes.CallToolResult) model.ToolResult {
	if res == nil {
		return model.ToolResult{}
	}
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		if text, ok := mcptypes.AsTextContent(c); ok {
			parts = append(parts, text.Text)
			continue
		}
		parts = append(parts, fmt.Sprintf("[%T content]", c))
	}
	return model.ToolResult{Content: strings.Join(parts, "\n"), IsError: res.IsError}
}

// Shutdown stops every server in parallel.
func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	names := pm.Running()

	var wg sync.WaitGroup
	errChan := make(chan error, len(names))

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := pm.Stop(ctx, name); err != nil {
				errChan <- err
			}
		}(name)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// createRemoteClient creates an MCP client for remote servers. The transport
// outlives ctx; only the request that started the server may be cancelled.
func (pm *ProcessManager) createRemoteClient(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
	ctx = context.WithoutCancel(ctx)
	switch cfg.Transport {
	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		mcpClient, err := client.NewStreamableHttpClient(cfg.URL, opts...)
		if err != nil {
			return nil, err
		}
		// Start HTTP transport (required before Initialize/ListTools)
		if err := mcpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
		}
		return mcpClient, nil

	default:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		mcpClient, err := client.NewSSEMCPClient(cfg.URL, opts...)
		if err != nil {
			return nil, err
		}
		// Start SSE transport (required before Initialize/ListTools)
		if err := mcpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start SSE transport: %w", err)
		}
		return mcpClient, nil
	}
}

// createLocalClient starts a stdio server and returns the command as well
func (pm *ProcessManager) createLocalClient(ctx context.Context, cfg ServerConfig) (*client.Client, *exec.Cmd, error) {
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, nil, fmt.Errorf("command %q not found: %w", cfg.Command, err)
	}

	var capturedCmd *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		configToEnv(cfg.Env),
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil {
		pm.logger.Debug("started local server", "server", cfg.Name, "pid", capturedCmd.Process.Pid)
	}
	return mcpClient, capturedCmd, nil
}

func configToEnv(envMap map[string]string) []string {
	// Start with current process environment to preserve PATH and other system vars
	env := os.Environ()
	for k, v := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
