package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MetaStore is the small synchronous string store holding the thread list
// and the active-thread pointer.
type MetaStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// FileMetaStore keeps one file per key inside a directory.
type FileMetaStore struct {
	dir string
}

// NewFileMetaStore creates the directory (0700 - user-only access) and
// returns a store rooted there.
func NewFileMetaStore(dir string) (*FileMetaStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}
	return &FileMetaStore{dir: dir}, nil
}

func (s *FileMetaStore) path(key string) string {
	return filepath.Join(s.dir, SanitizeFilename(key))
}

// Get returns the value for key. A missing or unreadable file reads as absent.
func (s *FileMetaStore) Get(key string) (string, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set writes the value for key with 0600 permissions.
func (s *FileMetaStore) Set(key, value string) error {
	if err := os.WriteFile(s.path(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileMetaStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// MemoryMetaStore is a MetaStore that lives only as long as the process.
type MemoryMetaStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryMetaStore creates an empty in-memory store.
func NewMemoryMetaStore() *MemoryMetaStore {
	return &MemoryMetaStore{values: make(map[string]string)}
}

func (s *MemoryMetaStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryMetaStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryMetaStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
		"\"", "-", "<", "-", ">", "-", "|", "-", " ", "-",
		"\n", "-", "\r", "-",
	)
	name = replacer.Replace(name)

	// Remove leading/trailing hyphens and dots
	name = strings.Trim(name, "-.")

	if name == "" {
		name = "key"
	}
	return name
}
