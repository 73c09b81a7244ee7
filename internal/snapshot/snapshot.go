package snapshot

import (
	"time"

	"schemavault/internal/core"
	"schemavault/internal/hash"
)

// Metadata describes who created a snapshot, when, and why.
// It never participates in the content hash.
type Metadata struct {
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Snapshot is an immutable, content-addressed capture of a schema's entity
// definitions. The hash is a pure function of Entities: identical content
// always yields the identical hash regardless of metadata.
type Snapshot struct {
	Hash       string        `json:"hash"`
	ParentHash string        `json:"parentHash,omitempty"`
	Entities   core.Entities `json:"entities"`
	Metadata   Metadata      `json:"metadata"`
}

// ManifestEntry is the secondary index record kept per snapshot.
// ParentHash links entries into a hash-chained graph.
type ManifestEntry struct {
	Hash       string   `json:"hash"`
	ParentHash string   `json:"parentHash,omitempty"`
	Metadata   Metadata `json:"metadata"`
}

// Create builds a snapshot from entities, computing its content hash.
// It is pure: no I/O happens here, callers persist via Store.Save.
func Create(entities core.Entities, meta Metadata, parentHash string) (*Snapshot, error) {
	h, err := hash.Schema(entities)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Hash:       h,
		ParentHash: parentHash,
		Entities:   entities,
		Metadata:   meta,
	}, nil
}
