// Package database implements the audit log's "database" storage mode on
// SQLite.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"schemavault/internal/audit"
	"schemavault/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements audit.EntryStore on a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the audit database at path and brings
// its schema up to date. path can be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("audit storage is \"database\" but no database_path is configured")
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating audit database: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the audit store relies on. Exported for tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Append inserts one audit entry. Entries are never updated or deleted
// outside of Prune. Timestamps are bound in UTC: the driver stores
// time.Time as text including the zone offset, and the timestamp column
// compares lexically.
func (s *SQLiteStore) Append(e audit.Entry) error {
	oldData, err := marshalNullable(e.OldData)
	if err != nil {
		return fmt.Errorf("encoding old_data: %w", err)
	}
	newData, err := marshalNullable(e.NewData)
	if err != nil {
		return fmt.Errorf("encoding new_data: %w", err)
	}
	var metadata any
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err = s.db.Exec(`
		INSERT INTO audit_entries
			(id, timestamp, snapshot, table_name, record_id, operation,
			 old_data, new_data, changed_by, changed_via, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC(), e.Snapshot, e.TableName, e.RecordID, string(e.Operation),
		oldData, newData, nullable(e.ChangedBy), nullable(e.ChangedVia), metadata,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *SQLiteStore) List(limit int) ([]audit.Entry, error) {
	query := `
		SELECT id, timestamp, snapshot, table_name, record_id, operation,
		       old_data, new_data, changed_by, changed_via, metadata
		FROM audit_entries
		ORDER BY timestamp DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// BySnapshot returns all entries tagged with the snapshot hash, in append
// order.
func (s *SQLiteStore) BySnapshot(snapshotHash string) ([]audit.Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, snapshot, table_name, record_id, operation,
		       old_data, new_data, changed_by, changed_via, metadata
		FROM audit_entries
		WHERE snapshot = ?
		ORDER BY rowid`,
		snapshotHash,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries by snapshot: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Prune deletes entries with a timestamp before the cutoff and returns how
// many were removed.
func (s *SQLiteStore) Prune(before time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM audit_entries WHERE timestamp < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning audit entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned entries: %w", err)
	}
	return int(affected), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			e                   audit.Entry
			op                  string
			oldData, newData    sql.NullString
			changedBy           sql.NullString
			changedVia          sql.NullString
			metadata            sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Snapshot, &e.TableName, &e.RecordID, &op,
			&oldData, &newData, &changedBy, &changedVia, &metadata); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Operation = audit.Operation(op)
		e.ChangedBy = changedBy.String
		e.ChangedVia = changedVia.String

		if oldData.Valid {
			if err := json.Unmarshal([]byte(oldData.String), &e.OldData); err != nil {
				return nil, fmt.Errorf("decoding old_data: %w", err)
			}
		}
		if newData.Valid {
			if err := json.Unmarshal([]byte(newData.String), &e.NewData); err != nil {
				return nil, fmt.Errorf("decoding new_data: %w", err)
			}
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit entries: %w", err)
	}
	return entries, nil
}

func marshalNullable(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Compile-time check that SQLiteStore implements audit.EntryStore
var _ audit.EntryStore = (*SQLiteStore)(nil)
