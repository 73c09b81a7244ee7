package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"schemavault/internal/core"
)

const (
	dirName      = "snapshots"
	manifestPath = "snapshots/manifest.json"
)

// Store persists snapshots content-addressed by hash and maintains a
// manifest index. Reads are fail-soft: missing or unparsable content is
// treated as not found, never an error. Write failures propagate.
type Store struct {
	fs core.Store
}

// NewStore creates a snapshot store over the given storage backend.
func NewStore(fs core.Store) *Store {
	return &Store{fs: fs}
}

func bodyPath(hash string) string {
	return dirName + "/" + hash + ".json"
}

// Save persists the snapshot body under its hash and appends a manifest
// entry unless one is already present. Saving identical content twice is
// a no-op: both writers converge on the same file.
func (s *Store) Save(snap *Snapshot) error {
	exists, err := s.fs.Exists(bodyPath(snap.Hash))
	if err != nil {
		return fmt.Errorf("checking for existing snapshot: %w", err)
	}
	if !exists {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		if err := s.fs.Write(bodyPath(snap.Hash), data); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}

	manifest := s.loadManifest()
	for _, e := range manifest {
		if e.Hash == snap.Hash {
			return nil // already indexed
		}
	}
	manifest = append(manifest, ManifestEntry{
		Hash:       snap.Hash,
		ParentHash: snap.ParentHash,
		Metadata:   snap.Metadata,
	})
	return s.saveManifest(manifest)
}

// Load returns the snapshot with the given hash, or nil if it is missing
// or its persisted body cannot be parsed.
func (s *Store) Load(hash string) (*Snapshot, error) {
	data, err := s.fs.Read(bodyPath(hash))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt body is treated as not found.
		return nil, nil
	}
	return &snap, nil
}

// Exists reports whether a snapshot body is stored for the given hash.
func (s *Store) Exists(hash string) (bool, error) {
	return s.fs.Exists(bodyPath(hash))
}

// Delete removes the snapshot body and its manifest entry.
// Deleting a missing snapshot is a no-op.
func (s *Store) Delete(hash string) error {
	if err := s.fs.Remove(bodyPath(hash)); err != nil {
		return fmt.Errorf("removing snapshot: %w", err)
	}

	manifest := s.loadManifest()
	kept := manifest[:0]
	changed := false
	for _, e := range manifest {
		if e.Hash == hash {
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	if !changed {
		return nil
	}
	return s.saveManifest(kept)
}

// Find returns the snapshot for the first manifest entry whose hash starts
// with the given prefix, or nil if none matches. Ambiguous prefixes are not
// disambiguated: callers must supply enough characters.
func (s *Store) Find(partialHash string) (*Snapshot, error) {
	if partialHash == "" {
		return nil, nil
	}
	for _, e := range s.loadManifest() {
		if strings.HasPrefix(e.Hash, partialHash) {
			return s.Load(e.Hash)
		}
	}
	return nil, nil
}

// All returns every manifest entry in insertion order.
func (s *Store) All() ([]ManifestEntry, error) {
	return s.loadManifest(), nil
}

// Hashes returns the hashes of all known snapshots in insertion order.
func (s *Store) Hashes() ([]string, error) {
	manifest := s.loadManifest()
	hashes := make([]string, 0, len(manifest))
	for _, e := range manifest {
		hashes = append(hashes, e.Hash)
	}
	return hashes, nil
}

// Metadata returns the manifest metadata for the given hash, or nil if the
// snapshot is not indexed.
func (s *Store) Metadata(hash string) (*Metadata, error) {
	for _, e := range s.loadManifest() {
		if e.Hash == hash {
			meta := e.Metadata
			return &meta, nil
		}
	}
	return nil, nil
}

// loadManifest reads the manifest index. A missing or corrupt manifest is
// treated as empty.
func (s *Store) loadManifest() []ManifestEntry {
	data, err := s.fs.Read(manifestPath)
	if err != nil || data == nil {
		return nil
	}
	var manifest []ManifestEntry
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	return manifest
}

func (s *Store) saveManifest(manifest []ManifestEntry) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := s.fs.Write(manifestPath, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
