package storage

import (
	"sort"
	"strings"
	"sync"

	"schemavault/internal/core"
)

// MemoryStore is an in-memory implementation of core.Store, useful for
// testing. This implementation is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

// Read returns the content at path, or (nil, nil) if nothing is stored there.
func (m *MemoryStore) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores data at path.
func (m *MemoryStore) Write(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[path] = stored
	return nil
}

// Exists reports whether something is stored at path.
func (m *MemoryStore) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[path]
	return ok, nil
}

// List returns the names of entries directly under dir, sorted.
func (m *MemoryStore) List(dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"
	seen := make(map[string]bool)
	for path := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		// Only direct children; deeper entries surface as their directory name.
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes the entry at path. Removing a missing entry is a no-op.
func (m *MemoryStore) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path)
	return nil
}

// MkdirAll is a no-op: the in-memory store has no real directories.
func (m *MemoryStore) MkdirAll(string) error { return nil }

// Compile-time check that MemoryStore implements core.Store
var _ core.Store = (*MemoryStore)(nil)
