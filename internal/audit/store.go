package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"schemavault/internal/core"
)

const logPath = "audit/log.jsonl"

// EntryStore persists audit entries. Implementations: FileStore (JSON Lines
// over any core.Store, which covers both the "file" and "s3" storage modes)
// and the SQLite store in internal/database for the "database" mode.
type EntryStore interface {
	// Append adds one entry. Entries are never mutated or overwritten.
	Append(e Entry) error

	// List returns up to limit entries, newest first. limit <= 0 returns all.
	List(limit int) ([]Entry, error)

	// BySnapshot returns all entries tagged with the snapshot hash, in
	// append order.
	BySnapshot(snapshotHash string) ([]Entry, error)

	// Prune removes entries with a timestamp before the cutoff and returns
	// how many were removed.
	Prune(before time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// FileStore keeps the audit log as one JSON document per line. Unparsable
// lines are skipped on read, matching the fail-soft read semantics of the
// rest of the subsystem.
type FileStore struct {
	fs core.Store
}

// NewFileStore creates a JSONL audit store over the given storage backend.
func NewFileStore(fs core.Store) *FileStore {
	return &FileStore{fs: fs}
}

func (s *FileStore) Append(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	existing, err := s.fs.Read(logPath)
	if err != nil {
		return fmt.Errorf("reading audit log: %w", err)
	}

	data := append(existing, line...)
	data = append(data, '\n')
	if err := s.fs.Write(logPath, data); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

func (s *FileStore) List(limit int) ([]Entry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	// Newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *FileStore) BySnapshot(snapshotHash string) ([]Entry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, e := range entries {
		if e.Snapshot == snapshotHash {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (s *FileStore) Prune(before time.Time) (int, error) {
	data, err := s.fs.Read(logPath)
	if err != nil {
		return 0, fmt.Errorf("reading audit log: %w", err)
	}
	if data == nil {
		return 0, nil
	}

	var kept bytes.Buffer
	removed := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // drop unparsable lines along with the expired ones
		}
		if e.Timestamp.Before(before) {
			removed++
			continue
		}
		kept.Write(line)
		kept.WriteByte('\n')
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.fs.Write(logPath, kept.Bytes()); err != nil {
		return 0, fmt.Errorf("writing audit log: %w", err)
	}
	return removed, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readAll() ([]Entry, error) {
	data, err := s.fs.Read(logPath)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var entries []Entry
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Compile-time check that FileStore implements EntryStore
var _ EntryStore = (*FileStore)(nil)
