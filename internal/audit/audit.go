// Package audit keeps an append-only record of per-row mutations, tagged
// with the schema snapshot active when they occurred. Entries are immutable:
// they are created once and removed only by a retention sweep.
package audit

import (
	"fmt"
	"time"

	"schemavault/internal/core"
	"schemavault/internal/retention"
)

// Operation is the audited mutation kind, in SQL terms.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// FromMutation maps a mutation verb used by the surrounding service to an
// audit Operation.
func FromMutation(mutation string) (Operation, error) {
	switch mutation {
	case "create":
		return OpInsert, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	default:
		return "", fmt.Errorf("unknown mutation: %s", mutation)
	}
}

// TrackRule names an entity and the operations to audit for it.
// The operation "all" matches every operation.
type TrackRule struct {
	Entity     string   `json:"entity"`
	Operations []string `json:"operations"`
}

// Config drives filtering in the audit log.
type Config struct {
	Enabled   bool        `json:"enabled"`
	Track     []TrackRule `json:"track"`
	Retention string      `json:"retention,omitempty"` // e.g. "90d"
	Storage   string      `json:"storage"`             // "database", "s3", or "file"
}

// ShouldAudit reports whether a mutation on the given entity should be
// recorded: only when auditing is enabled and a tracking rule for the
// entity lists the operation or "all".
func ShouldAudit(cfg Config, entity string, op Operation) bool {
	if !cfg.Enabled {
		return false
	}
	for _, rule := range cfg.Track {
		if rule.Entity != entity {
			continue
		}
		for _, tracked := range rule.Operations {
			if tracked == "all" || Operation(tracked) == op {
				return true
			}
		}
	}
	return false
}

// Entry is one immutable audit record.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Snapshot   string         `json:"snapshot"`
	TableName  string         `json:"table_name"`
	RecordID   string         `json:"record_id"`
	Operation  Operation      `json:"operation"`
	OldData    any            `json:"old_data,omitempty"`
	NewData    any            `json:"new_data,omitempty"`
	ChangedBy  string         `json:"changed_by,omitempty"`
	ChangedVia string         `json:"changed_via,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EntryOptions carries the optional attribution fields of an entry.
type EntryOptions struct {
	ChangedBy  string
	ChangedVia string
	Metadata   map[string]any
}

// NewEntry constructs an audit entry. It is pure: persistence is the
// store's job.
func NewEntry(id string, ts time.Time, table, recordID string, op Operation, oldData, newData any, snapshotHash string, opts EntryOptions) Entry {
	return Entry{
		ID:         id,
		Timestamp:  ts,
		Snapshot:   snapshotHash,
		TableName:  table,
		RecordID:   recordID,
		Operation:  op,
		OldData:    oldData,
		NewData:    newData,
		ChangedBy:  opts.ChangedBy,
		ChangedVia: opts.ChangedVia,
		Metadata:   opts.Metadata,
	}
}

// Expired reports whether an entry has outlived the retention window of
// the given number of days, as of now.
func Expired(e Entry, retentionDays int, now time.Time) bool {
	return retention.Expired(e.Timestamp, retentionDays, now)
}

// Log filters mutations through the tracking policy and appends the ones
// that pass to the configured store.
type Log struct {
	store EntryStore
	cfg   Config
	clock core.Clock
	idgen core.IDGenerator
}

// NewLog creates an audit log over the given entry store.
func NewLog(store EntryStore, cfg Config, clock core.Clock, idgen core.IDGenerator) *Log {
	return &Log{store: store, cfg: cfg, clock: clock, idgen: idgen}
}

// Record appends an entry for the mutation if policy says it should be
// audited. It returns the entry and true when one was recorded.
func (l *Log) Record(table, recordID string, op Operation, oldData, newData any, snapshotHash string, opts EntryOptions) (*Entry, bool, error) {
	if !ShouldAudit(l.cfg, table, op) {
		return nil, false, nil
	}

	e := NewEntry(l.idgen.New(), l.clock.Now(), table, recordID, op, oldData, newData, snapshotHash, opts)
	if err := l.store.Append(e); err != nil {
		return nil, false, fmt.Errorf("appending audit entry: %w", err)
	}
	return &e, true, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Log) List(limit int) ([]Entry, error) {
	return l.store.List(limit)
}

// BySnapshot returns all entries recorded while the given snapshot was
// active, in append order.
func (l *Log) BySnapshot(snapshotHash string) ([]Entry, error) {
	return l.store.BySnapshot(snapshotHash)
}

// Prune removes entries older than the configured retention period and
// returns how many were removed. With no retention configured it is a no-op.
func (l *Log) Prune() (int, error) {
	if l.cfg.Retention == "" {
		return 0, nil
	}
	days, err := retention.ParseDays(l.cfg.Retention)
	if err != nil {
		return 0, fmt.Errorf("parsing audit retention: %w", err)
	}
	cutoff := l.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	return l.store.Prune(cutoff)
}
