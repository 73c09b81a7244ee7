// Package trash is the soft-delete safety net: destructive schema and data
// operations move their payloads here instead of deleting them, and a sweep
// purges entries only after their retention window has passed.
package trash

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"schemavault/internal/core"
)

// DefaultRetentionDays is how long trashed payloads are kept when no
// retention is configured.
const DefaultRetentionDays = 30

const manifestPath = "trash/manifest.json"

// ErrExpired is returned when restoring an entry past its expiration date.
var ErrExpired = errors.New("trash entry has expired and cannot be restored")

// Type classifies what was trashed.
type Type string

const (
	TypeMigration      Type = "migration"
	TypeDataSnapshot   Type = "data_snapshot"
	TypeSchemaSnapshot Type = "schema_snapshot"
)

// Status is derived, never stored: an entry is active until it expires by
// wall clock or is explicitly restored. Once purged it cannot return to any
// state.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusRestored Status = "restored"
)

// EntryMetadata carries type-specific details for audit and troubleshooting.
type EntryMetadata struct {
	MigrationHash string `json:"migration_hash,omitempty"`
	TableName     string `json:"table_name,omitempty"`
	RowCount      int64  `json:"row_count,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Entry is one soft-deleted item.
type Entry struct {
	ID           string        `json:"id"`
	Type         Type          `json:"type"`
	Name         string        `json:"name"`
	OriginalPath string        `json:"original_path"`
	TrashPath    string        `json:"trash_path"`
	DeletedAt    time.Time     `json:"deleted_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	RestoredAt   *time.Time    `json:"restored_at,omitempty"`
	Metadata     EntryMetadata `json:"metadata"`
}

// Manager moves payloads in and out of the trash area and maintains the
// trash manifest. Manifest updates are read-modify-write, serialized by an
// internal mutex; use one Manager per project directory.
type Manager struct {
	mu            sync.Mutex
	fs            core.Store
	clock         core.Clock
	idgen         core.IDGenerator
	retentionDays int
}

// NewManager creates a trash manager. retentionDays <= 0 falls back to
// DefaultRetentionDays.
func NewManager(fs core.Store, clock core.Clock, idgen core.IDGenerator, retentionDays int) *Manager {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Manager{fs: fs, clock: clock, idgen: idgen, retentionDays: retentionDays}
}

// ExpirationDate returns the expiry timestamp for an entry deleted now.
// days <= 0 uses the manager's configured retention.
func (m *Manager) ExpirationDate(days int) time.Time {
	if days <= 0 {
		days = m.retentionDays
	}
	return m.clock.Now().AddDate(0, 0, days)
}

// IsExpired reports whether the entry is past its expiration date.
func (m *Manager) IsExpired(e Entry) bool {
	return m.clock.Now().After(e.ExpiresAt)
}

// Status derives the entry's lifecycle state as of now.
func (m *Manager) Status(e Entry) Status {
	if e.RestoredAt != nil {
		return StatusRestored
	}
	if m.IsExpired(e) {
		return StatusExpired
	}
	return StatusActive
}

// Put moves the payload at originalPath into the trash area and records a
// manifest entry for it.
func (m *Manager) Put(typ Type, name, originalPath string, meta EntryMetadata) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, err := m.fs.Read(originalPath)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("nothing to trash at %s", originalPath)
	}

	id := m.idgen.New()
	entry := Entry{
		ID:           id,
		Type:         typ,
		Name:         name,
		OriginalPath: originalPath,
		TrashPath:    "trash/" + id + "/" + name,
		DeletedAt:    m.clock.Now(),
		ExpiresAt:    m.ExpirationDate(0),
		Metadata:     meta,
	}
	if entry.Metadata.SizeBytes == 0 {
		entry.Metadata.SizeBytes = int64(len(payload))
	}

	if err := m.fs.Write(entry.TrashPath, payload); err != nil {
		return nil, fmt.Errorf("writing trashed payload: %w", err)
	}
	if err := m.fs.Remove(originalPath); err != nil {
		return nil, fmt.Errorf("removing original payload: %w", err)
	}

	manifest := m.loadManifest()
	manifest = append(manifest, entry)
	if err := m.saveManifest(manifest); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns all trash entries in deletion order.
func (m *Manager) List() ([]Entry, error) {
	return m.loadManifest(), nil
}

// Get returns the entry with the given ID, or nil.
func (m *Manager) Get(id string) (*Entry, error) {
	for _, e := range m.loadManifest() {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

// Restore moves a trashed payload back to its original path and marks the
// entry restored. Expired entries cannot be restored, and an entry can only
// be restored once.
func (m *Manager) Restore(id string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest := m.loadManifest()
	idx := -1
	for i, e := range manifest {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("trash entry not found: %s", id)
	}

	entry := manifest[idx]
	if entry.RestoredAt != nil {
		return nil, fmt.Errorf("trash entry already restored: %s", id)
	}
	if m.IsExpired(entry) {
		return nil, fmt.Errorf("trash entry %s: %w", id, ErrExpired)
	}

	payload, err := m.fs.Read(entry.TrashPath)
	if err != nil {
		return nil, fmt.Errorf("reading trashed payload: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("trashed payload missing for entry: %s", id)
	}

	if err := m.fs.Write(entry.OriginalPath, payload); err != nil {
		return nil, fmt.Errorf("restoring payload: %w", err)
	}
	if err := m.fs.Remove(entry.TrashPath); err != nil {
		return nil, fmt.Errorf("removing trashed payload: %w", err)
	}

	now := m.clock.Now()
	entry.RestoredAt = &now
	manifest[idx] = entry
	if err := m.saveManifest(manifest); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Purge permanently deletes a trash entry and its payload. A purged entry
// cannot be restored.
func (m *Manager) Purge(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purgeLocked(id)
}

// Sweep purges all expired, unrestored entries and returns how many were
// removed.
func (m *Manager) Sweep() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for _, e := range m.loadManifest() {
		if e.RestoredAt == nil && m.IsExpired(e) {
			if err := m.purgeLocked(e.ID); err != nil {
				return purged, err
			}
			purged++
		}
	}
	return purged, nil
}

func (m *Manager) purgeLocked(id string) error {
	manifest := m.loadManifest()
	kept := manifest[:0]
	var target *Entry
	for _, e := range manifest {
		if e.ID == id {
			out := e
			target = &out
			continue
		}
		kept = append(kept, e)
	}
	if target == nil {
		return fmt.Errorf("trash entry not found: %s", id)
	}

	if err := m.fs.Remove(target.TrashPath); err != nil {
		return fmt.Errorf("removing trashed payload: %w", err)
	}
	return m.saveManifest(kept)
}

// loadManifest reads the trash manifest. Missing or corrupt manifests are
// treated as empty.
func (m *Manager) loadManifest() []Entry {
	data, err := m.fs.Read(manifestPath)
	if err != nil || data == nil {
		return nil
	}
	var manifest []Entry
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	return manifest
}

func (m *Manager) saveManifest(manifest []Entry) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding trash manifest: %w", err)
	}
	if err := m.fs.Write(manifestPath, data); err != nil {
		return fmt.Errorf("writing trash manifest: %w", err)
	}
	return nil
}
