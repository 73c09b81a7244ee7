// Package version maintains the semantic version ledger built on top of the
// snapshot store: an append-only history of schema versions, entity-level
// diffs, and a per-version entity archive for direct retrieval by version
// name.
package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"schemavault/internal/core"
	"schemavault/internal/hash"
)

// ErrUnchanged is returned by Record when the schema hash equals the
// ledger's current hash.
var ErrUnchanged = errors.New("schema has not changed since last version")

const (
	historyPath = "versions/history.json"
	archiveDir  = "versions/snapshots"
)

// SchemaVersion is one append-only ledger entry. ChangedEntities is fixed
// at creation time and never recomputed.
type SchemaVersion struct {
	Version         string    `json:"version"`
	Hash            string    `json:"hash"`
	ChangedEntities []string  `json:"changedEntities"`
	AppliedAt       time.Time `json:"appliedAt"`
	Description     string    `json:"description,omitempty"`
	PreviousVersion string    `json:"previousVersion,omitempty"`
	PreviousHash    string    `json:"previousHash,omitempty"`
}

// History is the single per-project ledger record.
type History struct {
	CurrentVersion string          `json:"currentVersion"`
	CurrentHash    string          `json:"currentHash"`
	Versions       []SchemaVersion `json:"versions"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Diff lists the entity names that differ between two recorded versions.
type Diff struct {
	FromVersion string   `json:"fromVersion"`
	ToVersion   string   `json:"toVersion"`
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
	Modified    []string `json:"modified"`
}

// RecordOptions carries the optional inputs to Record.
type RecordOptions struct {
	Version     string // explicit version; auto-generated when empty
	Description string
}

// Ledger records and queries schema versions. Record performs a
// read-modify-write cycle on the history file, so it is serialized by an
// internal mutex; use one Ledger per project directory.
type Ledger struct {
	mu    sync.Mutex
	fs    core.Store
	clock core.Clock
}

// NewLedger creates a version ledger over the given storage backend.
func NewLedger(fs core.Store, clock core.Clock) *Ledger {
	return &Ledger{fs: fs, clock: clock}
}

// ComputeSchemaHash returns the content digest of the entities value.
func (l *Ledger) ComputeSchemaHash(entities core.Entities) (string, error) {
	return hash.Schema(entities)
}

// DetectChangedEntities returns the names of entities added, removed, or
// modified between the old and new schemas. old may be nil, in which case
// every entity in new is reported. The result is sorted and de-duplicated;
// order carries no meaning.
func DetectChangedEntities(old, new core.Entities) ([]string, error) {
	changed := make(map[string]bool)

	for name, newValue := range new {
		oldValue, ok := old[name]
		if !ok {
			changed[name] = true // added
			continue
		}
		oldDigest, err := hash.Entity(oldValue)
		if err != nil {
			return nil, fmt.Errorf("hashing entity %s: %w", name, err)
		}
		newDigest, err := hash.Entity(newValue)
		if err != nil {
			return nil, fmt.Errorf("hashing entity %s: %w", name, err)
		}
		if oldDigest != newDigest {
			changed[name] = true // modified
		}
	}

	for name := range old {
		if _, ok := new[name]; !ok {
			changed[name] = true // removed
		}
	}

	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Record appends a new version to the history. It fails with ErrUnchanged
// if the schema hash equals the current hash. When opts.Version is empty,
// the version number is generated by bumping the patch component of the
// last version; the first version is "0.0.1". The full entity value is
// archived under the version string for later diffing.
func (l *Ledger) Record(entities core.Entities, opts RecordOptions) (*SchemaVersion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	newHash, err := hash.Schema(entities)
	if err != nil {
		return nil, err
	}

	history := l.loadHistory()
	if history.CurrentHash == newHash {
		return nil, ErrUnchanged
	}

	// Diff against the previous version's archived entities, if any.
	var prevEntities core.Entities
	if history.CurrentVersion != "" {
		prevEntities, err = l.loadArchive(history.CurrentVersion)
		if err != nil {
			return nil, err
		}
	}
	changed, err := DetectChangedEntities(prevEntities, entities)
	if err != nil {
		return nil, err
	}

	ver := opts.Version
	if ver == "" {
		ver = nextVersion(history.CurrentVersion)
	}

	sv := SchemaVersion{
		Version:         ver,
		Hash:            newHash,
		ChangedEntities: changed,
		AppliedAt:       l.clock.Now(),
		Description:     opts.Description,
		PreviousVersion: history.CurrentVersion,
		PreviousHash:    history.CurrentHash,
	}

	history.Versions = append(history.Versions, sv)
	history.CurrentVersion = sv.Version
	history.CurrentHash = sv.Hash
	history.UpdatedAt = l.clock.Now()

	if err := l.saveHistory(history); err != nil {
		return nil, err
	}
	if err := l.saveArchive(sv.Version, entities); err != nil {
		return nil, err
	}
	return &sv, nil
}

// Diff returns the entity-level differences between two recorded versions,
// or nil if either version's entity archive is missing.
func (l *Ledger) Diff(fromVersion, toVersion string) (*Diff, error) {
	from, err := l.loadArchive(fromVersion)
	if err != nil {
		return nil, err
	}
	to, err := l.loadArchive(toVersion)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, nil
	}

	diff := &Diff{FromVersion: fromVersion, ToVersion: toVersion}
	for name, toValue := range to {
		fromValue, ok := from[name]
		if !ok {
			diff.Added = append(diff.Added, name)
			continue
		}
		fromDigest, err := hash.Entity(fromValue)
		if err != nil {
			return nil, fmt.Errorf("hashing entity %s: %w", name, err)
		}
		toDigest, err := hash.Entity(toValue)
		if err != nil {
			return nil, fmt.Errorf("hashing entity %s: %w", name, err)
		}
		if fromDigest != toDigest {
			diff.Modified = append(diff.Modified, name)
		}
	}
	for name := range from {
		if _, ok := to[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Modified)
	return diff, nil
}

// HasChanged reports whether the given entities differ from the ledger's
// current hash. With no recorded history it is always true.
func (l *Ledger) HasChanged(entities core.Entities) (bool, error) {
	h, err := hash.Schema(entities)
	if err != nil {
		return false, err
	}
	history := l.loadHistory()
	if history.CurrentHash == "" {
		return true, nil
	}
	return history.CurrentHash != h, nil
}

// List returns all recorded versions in append order.
func (l *Ledger) List() ([]SchemaVersion, error) {
	return l.loadHistory().Versions, nil
}

// Get returns the recorded version with the given version string, or nil.
func (l *Ledger) Get(version string) (*SchemaVersion, error) {
	for _, v := range l.loadHistory().Versions {
		if v.Version == version {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

// Current returns the most recently recorded version, or nil if no history
// exists.
func (l *Ledger) Current() (*SchemaVersion, error) {
	history := l.loadHistory()
	if history.CurrentVersion == "" {
		return nil, nil
	}
	return l.Get(history.CurrentVersion)
}

// CurrentHash returns the ledger's current schema hash, or "" if no history
// exists.
func (l *Ledger) CurrentHash() (string, error) {
	return l.loadHistory().CurrentHash, nil
}

// Archive returns the full entity value persisted for a version, or nil if
// the archive is missing.
func (l *Ledger) Archive(version string) (core.Entities, error) {
	return l.loadArchive(version)
}

// nextVersion bumps the patch component of the last version. A version
// lacking a patch segment gets one appended before the bump, and the bump
// never touches major or minor.
func nextVersion(last string) string {
	if last == "" {
		return "0.0.1"
	}
	parts := strings.Split(last, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		patch = 0
	}
	parts[2] = strconv.Itoa(patch + 1)
	return strings.Join(parts[:3], ".")
}

func archivePath(version string) string {
	return archiveDir + "/" + version + ".json"
}

// loadHistory reads the ledger record. A missing or corrupt history file
// is treated as empty.
func (l *Ledger) loadHistory() History {
	var history History
	data, err := l.fs.Read(historyPath)
	if err != nil || data == nil {
		return history
	}
	if err := json.Unmarshal(data, &history); err != nil {
		return History{}
	}
	return history
}

func (l *Ledger) saveHistory(history History) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := l.fs.Write(historyPath, data); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

func (l *Ledger) loadArchive(version string) (core.Entities, error) {
	data, err := l.fs.Read(archivePath(version))
	if err != nil {
		return nil, fmt.Errorf("reading version archive: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var entities core.Entities
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, nil // corrupt archive is treated as missing
	}
	return entities, nil
}

func (l *Ledger) saveArchive(version string, entities core.Entities) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding version archive: %w", err)
	}
	if err := l.fs.Write(archivePath(version), data); err != nil {
		return fmt.Errorf("writing version archive: %w", err)
	}
	return nil
}
