// Package state tracks one mutable current-snapshot pointer per named
// environment, analogous to a branch HEAD.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"schemavault/internal/core"
)

const dirName = "state"

// EnvironmentState is the per-environment pointer record. CurrentSnapshot
// is the hash of the snapshot active in the environment, or "" when the
// environment has never been promoted to.
type EnvironmentState struct {
	Environment     string    `json:"environment"`
	CurrentSnapshot string    `json:"currentSnapshot,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Tracker reads and upserts environment state records. It performs no
// validation that a snapshot hash exists in the snapshot store; callers
// own that invariant. Upserts are read-modify-write, serialized by an
// internal mutex; use one Tracker per project directory.
type Tracker struct {
	mu    sync.Mutex
	fs    core.Store
	clock core.Clock
}

// NewTracker creates an environment state tracker over the given storage
// backend.
func NewTracker(fs core.Store, clock core.Clock) *Tracker {
	return &Tracker{fs: fs, clock: clock}
}

func statePath(environment string) string {
	return dirName + "/" + environment + ".json"
}

// GetOrCreate returns the existing state for the environment, or a fresh
// record with no current snapshot. The fresh record is not persisted until
// the first Update.
func (t *Tracker) GetOrCreate(environment string) (*EnvironmentState, error) {
	st, err := t.load(environment)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return st, nil
	}
	return &EnvironmentState{
		Environment: environment,
		UpdatedAt:   t.clock.Now(),
	}, nil
}

// Update upserts the environment's current-snapshot pointer and timestamp.
func (t *Tracker) Update(environment, snapshotHash string) (*EnvironmentState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := &EnvironmentState{
		Environment:     environment,
		CurrentSnapshot: snapshotHash,
		UpdatedAt:       t.clock.Now(),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	if err := t.fs.Write(statePath(environment), data); err != nil {
		return nil, fmt.Errorf("writing state: %w", err)
	}
	return st, nil
}

// CurrentSnapshot returns the hash active in the environment, or "" if the
// environment has no state or no snapshot.
func (t *Tracker) CurrentSnapshot(environment string) (string, error) {
	st, err := t.load(environment)
	if err != nil {
		return "", err
	}
	if st == nil {
		return "", nil
	}
	return st.CurrentSnapshot, nil
}

// Environments returns the names of all environments with a state record,
// sorted.
func (t *Tracker) Environments() ([]string, error) {
	entries, err := t.fs.List(dirName)
	if err != nil {
		return nil, fmt.Errorf("listing state: %w", err)
	}

	var names []string
	for _, name := range entries {
		if strings.HasSuffix(name, ".json") {
			names = append(names, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// All returns every persisted environment state, ordered by environment name.
func (t *Tracker) All() ([]EnvironmentState, error) {
	names, err := t.Environments()
	if err != nil {
		return nil, err
	}

	states := make([]EnvironmentState, 0, len(names))
	for _, name := range names {
		st, err := t.load(name)
		if err != nil {
			return nil, err
		}
		if st != nil {
			states = append(states, *st)
		}
	}
	return states, nil
}

// Exists reports whether a state record is persisted for the environment.
func (t *Tracker) Exists(environment string) (bool, error) {
	return t.fs.Exists(statePath(environment))
}

// Delete removes the environment's state record. Deleting a missing record
// is a no-op.
func (t *Tracker) Delete(environment string) error {
	return t.fs.Remove(statePath(environment))
}

// load reads a state record. Missing or corrupt records yield nil.
func (t *Tracker) load(environment string) (*EnvironmentState, error) {
	data, err := t.fs.Read(statePath(environment))
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var st EnvironmentState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, nil
	}
	return &st, nil
}
