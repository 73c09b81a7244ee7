// Package backup keeps full/incremental backup bookkeeping: metadata,
// checksums, restorable chains, and retention-based expiry. The actual
// data-dump mechanics belong to the surrounding service; this package
// stores and accounts for the artifacts it produces.
package backup

import "time"

// Kind distinguishes full backups from incrementals.
type Kind string

const (
	KindFull        Kind = "full"
	KindIncremental Kind = "incremental"
)

// Trigger records why a backup was taken.
type Trigger string

const (
	TriggerSchemaTransition   Trigger = "schema_transition"
	TriggerDataTransformation Trigger = "data_transformation"
	TriggerSchedule           Trigger = "schedule"
	TriggerProductionDeploy   Trigger = "production_deploy"
	TriggerManual             Trigger = "manual"
)

// DatabaseInfo describes the database a backup was dumped from.
type DatabaseInfo struct {
	Provider string `json:"provider"`
	Version  string `json:"version,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// TableStat is the per-table row and byte count captured at backup time.
type TableStat struct {
	Rows int64 `json:"rows"`
	Size int64 `json:"size"`
}

// Metadata is the bookkeeping record written per backup artifact.
// BaseSnapshot and Changes are only set on incrementals: they name the full
// backup's snapshot the incremental applies on top of, and the entities it
// touches.
type Metadata struct {
	Snapshot        string               `json:"snapshot"`
	Timestamp       time.Time            `json:"timestamp"`
	Database        DatabaseInfo         `json:"database"`
	Tables          map[string]TableStat `json:"tables,omitempty"`
	Trigger         Trigger              `json:"trigger"`
	Transition      string               `json:"transition,omitempty"`
	Checksum        string               `json:"checksum"`
	Compression     string               `json:"compression,omitempty"`
	CompressedSize  int64                `json:"compressedSize,omitempty"`
	RetentionPolicy string               `json:"retentionPolicy"`
	Kind            Kind                 `json:"kind"`
	BaseSnapshot    string               `json:"baseSnapshot,omitempty"`
	Changes         []string             `json:"changes,omitempty"`
}

// Entry is the store-level wrapper around a registered backup.
type Entry struct {
	Filename string   `json:"filename"`
	Metadata Metadata `json:"metadata"`
	FilePath string   `json:"filePath"`
	Size     int64    `json:"size"`
}

// Incremental is one link in a backup chain.
type Incremental struct {
	Snapshot string   `json:"snapshot"`
	File     string   `json:"file"`
	Size     int64    `json:"size"`
	Changes  []string `json:"changes,omitempty"`
}

// Chain is a full backup plus the ordered incrementals that reconstruct a
// point-in-time state. Incrementals apply strictly in listed order, and
// TotalSize is always the full backup's size plus the sum of incremental
// sizes.
type Chain struct {
	Base         string        `json:"base"`
	FullBackup   Entry         `json:"fullBackup"`
	Size         int64         `json:"size"`
	Incrementals []Incremental `json:"incrementals"`
	TotalSize    int64         `json:"totalSize"`
}
