package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"tether/extension"
	"tether/model"
	"tether/provider"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type ProviderConfig struct {
	Type    string `toml:"type"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model"`
	// Timeout is a Go duration string such as "2m".
	Timeout string `toml:"timeout,omitempty"`
}

type SecurityConfig struct {
	Method     SecurityMethod `toml:"method"`
	SSHKeyPath string         `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	Provider     ProviderConfig         `toml:"provider"`
	Namespace    string                 `toml:"namespace,omitempty"`
	SystemPrompt string                 `toml:"system_prompt,omitempty"`
	Security     SecurityConfig         `toml:"security"`
	Extensions   []extension.Manifest   `toml:"extensions,omitempty"`
	Prompts      []model.PromptTemplate `toml:"prompts,omitempty"`
}

type Config struct {
	DataDirectory string
	Provider      provider.ProviderType
	BaseURL       string
	Model         string
	APIKey        string
	Timeout       time.Duration
	Namespace     string
	SystemPrompt  string
	Security      SecurityConfig
	Extensions    []extension.Manifest
	Prompts       []model.PromptTemplate
	Debug         bool
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// ProviderConfig returns the connection options for the provider factory.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		Type:    c.Provider,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		APIKey:  c.APIKey,
		Timeout: c.Timeout,
	}
}

func (c *Config) applyUserConfig(u *UserConfig) error {
	if u.Provider.Type != "" {
		c.Provider = provider.MapProviderIDToType(u.Provider.Type)
	}
	if u.Provider.BaseURL != "" {
		c.BaseURL = u.Provider.BaseURL
	}
	if u.Provider.Model != "" {
		c.Model = u.Provider.Model
	}
	if u.Provider.Timeout != "" {
		d, err := time.ParseDuration(u.Provider.Timeout)
		if err != nil {
			return fmt.Errorf("invalid provider timeout %q: %w", u.Provider.Timeout, err)
		}
		c.Timeout = d
	}
	if u.Namespace != "" {
		c.Namespace = u.Namespace
	}
	c.SystemPrompt = u.SystemPrompt
	if u.Security.Method != "" {
		c.Security = u.Security
	}
	c.Extensions = u.Extensions
	c.Prompts = u.Prompts
	return nil
}

func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("TETHER_PROVIDER"); p != "" {
		c.Provider = provider.MapProviderIDToType(p)
	}
	if url := os.Getenv("TETHER_BASE_URL"); url != "" {
		c.BaseURL = url
	}
	if m := os.Getenv("TETHER_MODEL"); m != "" {
		c.Model = m
	}
	if key := os.Getenv("TETHER_API_KEY"); key != "" {
		c.APIKey = key
	}
}

// CheckDebug reports whether TETHER_DEBUG enables debug logging.
func CheckDebug() bool {
	debug := strings.ToLower(os.Getenv("TETHER_DEBUG"))
	return debug == "true" || debug == "1"
}

// Load reads settings.toml and the user config in the data directory,
// creating commented defaults on first run, then applies environment
// overrides. The API key comes from TETHER_API_KEY or the credential store.
func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory: DefaultDataDir(),
		Provider:      provider.ProviderTypeOllama,
		BaseURL:       "http://localhost:11434",
		Model:         "llama3.1:latest",
		Timeout:       5 * time.Minute,
		Namespace:     "tether",
		Security:      SecurityConfig{Method: SecurityPlainText},
		Debug:         CheckDebug(),
	}

	if dataDir := os.Getenv("TETHER_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	} else {
		sys := DefaultSystemConfig()
		if err := loadOrCreate(SettingsPath(), GenerateSystemConfigTemplate(), sys); err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = sys.DataDirectory
	}

	dataDir := cfg.DataDir()
	if err := ensurePrivateDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	userCfg := DefaultUserConfig()
	if err := loadOrCreate(UserConfigPath(dataDir), GenerateUserConfigTemplate(), userCfg); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	for _, m := range userCfg.Extensions {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyUserConfig(userCfg); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if cfg.APIKey == "" {
		creds := NewCredentials(cfg.Security)
		creds.SetPassphrase(os.Getenv("TETHER_SSH_PASSPHRASE"))
		if err := creds.Load(dataDir); err != nil {
			return nil, fmt.Errorf("failed to load credentials: %w", err)
		}
		cfg.APIKey = creds.Get(string(cfg.Provider))
	}

	return cfg, nil
}
