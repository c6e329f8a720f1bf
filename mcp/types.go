package mcp

import (
	"errors"
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Transports for remote servers.
const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ServerConfig describes how to reach one MCP server: either a local command
// speaking stdio or a remote URL.
type ServerConfig struct {
	Name      string
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
	Transport string            // For remote servers: "sse" (default), "streamable-http"
	Headers   map[string]string // For remote servers
}

// IsRemote reports whether the server is reached over the network.
func (c ServerConfig) IsRemote() bool {
	return c.URL != ""
}

// Validate checks that exactly one way of reaching the server is set.
func (c ServerConfig) Validate() error {
	switch {
	case c.Name == "":
		return errors.New("server name is required")
	case c.Command == "" && c.URL == "":
		return errors.New("either command or url is required")
	case c.Command != "" && c.URL != "":
		return errors.New("command and url are mutually exclusive")
	}
	switch c.Transport {
	case "", TransportSSE, TransportStreamableHTTP:
		return nil
	default:
		return errors.New("unknown transport type: " + c.Transport)
	}
}

// Server is a started and initialized MCP server.
type Server struct {
	Name     string
	Process  *exec.Cmd // nil for remote and in-process servers
	Client   *client.Client
	Tools    []mcptypes.Tool
	IsRemote bool
}
