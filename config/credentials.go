package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SecurityMethod selects where API keys are kept.
type SecurityMethod string

const (
	// SecurityPlainText stores keys in <data_dir>/credentials.toml (0600).
	SecurityPlainText SecurityMethod = "plaintext"
	// SecuritySSHKey seals keys into <data_dir>/credentials.enc.
	SecuritySSHKey SecurityMethod = "ssh_key"
)

type credentialsFile struct {
	Keys map[string]string `toml:"keys"`
}

// Credentials holds API keys by provider type.
type Credentials struct {
	method     SecurityMethod
	keyPath    string
	passphrase string
	keys       map[string]string
}

// NewCredentials creates an empty store for sec. With the ssh_key method and
// no key path, the key is looked up in ~/.ssh on first use.
func NewCredentials(sec SecurityConfig) *Credentials {
	method := sec.Method
	if method == "" {
		method = SecurityPlainText
	}
	return &Credentials{
		method:  method,
		keyPath: ExpandPath(sec.SSHKeyPath),
		keys:    make(map[string]string),
	}
}

// SetPassphrase sets the passphrase of an encrypted SSH key.
func (c *Credentials) SetPassphrase(passphrase string) {
	c.passphrase = passphrase
}

func (c *Credentials) Get(provider string) string  { return c.keys[provider] }
func (c *Credentials) Set(provider, apiKey string) { c.keys[provider] = apiKey }
func (c *Credentials) Delete(provider string)      { delete(c.keys, provider) }
func (c *Credentials) Method() SecurityMethod      { return c.method }

func (c *Credentials) path(dataDir string) string {
	if c.method == SecuritySSHKey {
		return filepath.Join(dataDir, "credentials.enc")
	}
	return filepath.Join(dataDir, "credentials.toml")
}

func (c *Credentials) sealer() (*Sealer, error) {
	keyPath := c.keyPath
	if keyPath == "" {
		found, err := FindSSHKey()
		if err != nil {
			return nil, err
		}
		keyPath = found
	}
	signer, err := LoadSigner(keyPath, c.passphrase)
	if err != nil {
		return nil, err
	}
	return NewSealer(signer)
}

// Load reads the stored keys. A missing file leaves the store empty.
func (c *Credentials) Load(dataDir string) error {
	if c.method != SecurityPlainText && c.method != SecuritySSHKey {
		return fmt.Errorf("unknown security method: %s", c.method)
	}

	data, err := os.ReadFile(c.path(dataDir))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	if c.method == SecuritySSHKey {
		s, err := c.sealer()
		if err != nil {
			return err
		}
		if data, err = s.Open(data); err != nil {
			return fmt.Errorf("failed to decrypt credentials: %w", err)
		}
	}

	var cf credentialsFile
	if _, err := toml.Decode(string(data), &cf); err != nil {
		return fmt.Errorf("failed to parse credentials: %w", err)
	}
	c.keys = cf.Keys
	if c.keys == nil {
		c.keys = make(map[string]string)
	}
	return nil
}

// Save writes the keys with 0600 permissions.
func (c *Credentials) Save(dataDir string) error {
	if c.method != SecurityPlainText && c.method != SecuritySSHKey {
		return fmt.Errorf("unknown security method: %s", c.method)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(credentialsFile{Keys: c.keys}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	data := buf.Bytes()

	if c.method == SecuritySSHKey {
		s, err := c.sealer()
		if err != nil {
			return err
		}
		if data, err = s.Seal(data); err != nil {
			return fmt.Errorf("failed to encrypt credentials: %w", err)
		}
	}

	if err := os.WriteFile(c.path(dataDir), data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}
