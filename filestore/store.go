// Package filestore implements the in-memory virtual file store shared by all
// threads of an agent. Paths are normalized to a single leading slash with no
// doubled slashes; content is plain text and is neither versioned nor
// content-addressed.
package filestore

import (
	"sort"
	"strings"
	"sync"
)

// Store is a path → content map.
type Store struct {
	mu    sync.RWMutex
	files map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{files: make(map[string]string)}
}

// Normalize returns the canonical form of p: one leading slash and no
// repeated slashes. Surrounding whitespace is dropped.
func Normalize(p string) string {
	p = strings.TrimSpace(p)

	var b strings.Builder
	b.Grow(len(p) + 1)
	b.WriteByte('/')
	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Read returns the content stored at path.
func (s *Store) Read(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[Normalize(path)]
	return content, ok
}

// Write stores content at path, replacing any previous content.
func (s *Store) Write(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[Normalize(path)] = content
}

// Delete removes path and reports whether it existed.
func (s *Store) Delete(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Normalize(path)
	if _, ok := s.files[key]; !ok {
		return false
	}
	delete(s.files, key)
	return true
}

// Exists reports whether path holds a file.
func (s *Store) Exists(path string) bool {
	_, ok := s.Read(path)
	return ok
}

// List returns the sorted paths that start with the normalized prefix.
// An empty prefix lists everything.
func (s *Store) List(prefix string) []string {
	norm := Normalize(prefix)

	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		if strings.HasPrefix(p, norm) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Snapshot copies the full contents for persistence.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.files))
	for p, c := range s.files {
		out[p] = c
	}
	return out
}

// Load replaces the contents with a snapshot. Keys are normalized on the way
// in so snapshots written by older layouts still resolve.
func (s *Store) Load(snapshot map[string]string) {
	files := make(map[string]string, len(snapshot))
	for p, c := range snapshot {
		files[Normalize(p)] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = files
}

// Clear removes every file.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]string)
}
