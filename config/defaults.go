package config

import "fmt"

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: DefaultDataDir(),
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Provider: ProviderConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1:latest",
			Timeout: "5m",
		},
		Namespace: "tether",
		Security:  SecurityConfig{Method: SecurityPlainText},
	}
}

func GenerateSystemConfigTemplate() string {
	return fmt.Sprintf(`# tether system configuration
# Location: %s
# This file uses TOML format: https://toml.io

# Directory where threads, the file store and the user config are kept
data_directory = %q
`, SettingsPath(), DefaultDataDir())
}

func GenerateUserConfigTemplate() string {
	return `# tether user configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Storage namespace; threads of different namespaces never mix
namespace = "tether"

# Base system prompt (optional, a built-in prompt is used when empty)
system_prompt = ""

[provider]
# ollama, openai, openrouter or anthropic
type = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"
# Per-request timeout
timeout = "5m"

[security]
# How API keys in the credential store are kept: "plaintext" or "ssh_key"
method = "plaintext"
# ssh_key_path = "~/.ssh/id_ed25519"
# ed25519 or RSA only. An encrypted key reads its passphrase from
# TETHER_SSH_PASSPHRASE.

# Static extensions: MCP servers started with every session.
# [[extensions]]
# name = "github"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-github"]
#
# [[extensions]]
# name = "search"
# url = "http://localhost:9000/mcp"
# transport = "streamable-http"

# Prompt templates, invoked as /name in the prompt.
# [[prompts]]
# name = "review"
# description = "Review a file"
# body = "Review $1 and list concrete problems. Focus: ${@:2}"
`
}
