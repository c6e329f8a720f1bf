package extension

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"

	"tether/mcp"
)

// Dir is the file store directory runtime-added manifests are kept in.
const Dir = "/.extensions"

var manifestNameRE = regexp.MustCompile(`^[a-zA-Z0-9-]{1,32}$`)

// Manifest describes an extension backed by an MCP server.
//
//	name = "github"
//	description = "GitHub issues and pull requests"
//	command = "npx"
//	args = ["-y", "@modelcontextprotocol/server-github"]
//
//	[env]
//	GITHUB_TOKEN = "..."
//
// A remote server sets url (and optionally transport and [headers])
// instead of command.
type Manifest struct {
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Command     string            `toml:"command"`
	Args        []string          `toml:"args"`
	Env         map[string]string `toml:"env"`
	URL         string            `toml:"url"`
	Transport   string            `toml:"transport"`
	Headers     map[string]string `toml:"headers"`
}

// ParseManifest decodes and validates a TOML manifest.
func ParseManifest(src string) (Manifest, error) {
	var m Manifest
	md, err := toml.Decode(src, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("unknown manifest keys: %v", undecoded)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks the name and the server description.
func (m Manifest) Validate() error {
	if !manifestNameRE.MatchString(m.Name) {
		return fmt.Errorf("invalid extension name %q: use letters, digits and hyphens", m.Name)
	}
	if err := m.ServerConfig().Validate(); err != nil {
		return fmt.Errorf("invalid extension %s: %w", m.Name, err)
	}
	return nil
}

// ServerConfig returns the MCP server description.
func (m Manifest) ServerConfig() mcp.ServerConfig {
	return mcp.ServerConfig{
		Name:      m.Name,
		Command:   m.Command,
		Args:      m.Args,
		Env:       m.Env,
		URL:       m.URL,
		Transport: m.Transport,
		Headers:   m.Headers,
	}
}

// Path is where the manifest is persisted in the file store.
func (m Manifest) Path() string {
	return Dir + "/" + m.Name + ".toml"
}
