package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// HomeDir returns the user's home directory, or the filesystem root when it
// cannot be determined.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return string(filepath.Separator)
}

// ConfigDir holds settings.toml: $XDG_CONFIG_HOME/tether or ~/.config/tether.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tether")
	}
	return filepath.Join(HomeDir(), ".config", "tether")
}

// DefaultDataDir is used until settings.toml names another data directory:
// $XDG_DATA_HOME/tether, ~/.local/share/tether, or %LOCALAPPDATA%\tether on
// Windows.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tether")
	}
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "tether")
		}
		return filepath.Join(HomeDir(), "AppData", "Local", "tether")
	}
	return filepath.Join(HomeDir(), ".local", "share", "tether")
}

func SettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.toml")
}

func UserConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = HomeDir() + path[1:]
	}
	return filepath.Clean(os.ExpandEnv(path))
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ensurePrivateDir creates dir if needed and restricts it to the user.
func ensurePrivateDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0700)
	}
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0700 {
		return os.Chmod(dir, 0700)
	}
	return nil
}

// loadOrCreate decodes the TOML file at path into v. A missing file is
// written from template (0600) and v keeps the defaults it came with.
func loadOrCreate(path, template string, v any) error {
	_, err := toml.DecodeFile(path, v)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(template), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
