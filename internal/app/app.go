package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"schemavault/internal/audit"
	"schemavault/internal/backup"
	"schemavault/internal/config"
	"schemavault/internal/core"
	"schemavault/internal/database"
	"schemavault/internal/encryption"
	"schemavault/internal/snapshot"
	"schemavault/internal/state"
	"schemavault/internal/storage"
	"schemavault/internal/trash"
	"schemavault/internal/version"
)

// App is the application layer between the CLI and the component packages.
// It constructs all dependencies from config, exposes the high-level
// operations, and manages resource lifecycles on Close. One App owns one
// project directory: the ledger and tracker serialize their updates, so a
// second App against the same directory would reintroduce the lost-update
// race.
type App struct {
	cfg        *config.Config
	fs         core.Store
	snapshots  *snapshot.Store
	ledger     *version.Ledger
	tracker    *state.Tracker
	auditLog   *audit.Log
	auditStore audit.EntryStore
	backups    *backup.Manager
	trash      *trash.Manager
	logger     core.Logger
	clock      core.Clock
	logFile    *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "RecordVersion").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	fs, err := storage.NewStoreFromConfig(cfg.Storage, cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	clock := core.RealClock{}
	idgen := core.UUIDGenerator{}

	auditStore, err := newAuditStore(cfg, fs)
	if err != nil {
		return nil, fmt.Errorf("creating audit store: %w", err)
	}

	backups := backup.NewManager(fs, clock)
	if cfg.Backup.Encrypt {
		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		if !enc.IsConfigured() {
			auditStore.Close()
			return nil, fmt.Errorf("backup encryption enabled but no key pair is configured (run setup first)")
		}
		backups = backups.WithEncryptor(enc)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID+"-"+operation)
	if err != nil {
		auditStore.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	return &App{
		cfg:        cfg,
		fs:         fs,
		snapshots:  snapshot.NewStore(fs),
		ledger:     version.NewLedger(fs, clock),
		tracker:    state.NewTracker(fs, clock),
		auditLog:   audit.NewLog(auditStore, auditConfig(cfg.Audit), clock, idgen),
		auditStore: auditStore,
		backups:    backups,
		trash:      trash.NewManager(fs, clock, idgen, cfg.Trash.RetentionDays),
		logger:     log,
		clock:      clock,
		logFile:    logFile,
	}, nil
}

// newAuditStore picks the audit storage backend from config.
func newAuditStore(cfg *config.Config, fs core.Store) (audit.EntryStore, error) {
	switch cfg.Audit.Storage {
	case "file", "":
		return audit.NewFileStore(fs), nil
	case "database":
		return database.NewSQLiteStore(cfg.Audit.DatabasePath)
	case "s3":
		if cfg.Storage.Type == "s3" {
			// Project storage already lives in S3; share it.
			return audit.NewFileStore(fs), nil
		}
		s3cfg := cfg.Storage
		s3cfg.Type = "s3"
		s3fs, err := storage.NewStoreFromConfig(s3cfg, "")
		if err != nil {
			return nil, fmt.Errorf("audit storage is \"s3\": %w", err)
		}
		return audit.NewFileStore(s3fs), nil
	default:
		return nil, fmt.Errorf("unknown audit storage: %s", cfg.Audit.Storage)
	}
}

// auditConfig maps the TOML config shape onto the audit policy type.
func auditConfig(cfg config.AuditConfig) audit.Config {
	out := audit.Config{
		Enabled:   cfg.Enabled,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	}
	for _, rule := range cfg.Track {
		out.Track = append(out.Track, audit.TrackRule{
			Entity:     rule.Entity,
			Operations: rule.Operations,
		})
	}
	return out
}

// SaveSnapshot captures the entities as a content-addressed snapshot,
// chained to the most recently indexed snapshot. Saving a schema whose
// content already exists returns that existing snapshot unchanged.
func (a *App) SaveSnapshot(entities core.Entities, createdBy, description string) (*snapshot.Snapshot, error) {
	var parent string
	all, err := a.snapshots.All()
	if err != nil {
		return nil, fmt.Errorf("reading snapshot manifest: %w", err)
	}
	if len(all) > 0 {
		parent = all[len(all)-1].Hash
	}

	snap, err := snapshot.Create(entities, snapshot.Metadata{
		CreatedAt:   a.clock.Now(),
		CreatedBy:   createdBy,
		Description: description,
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot: %w", err)
	}

	// Content hashing ignores metadata, so a schema identical to any
	// earlier snapshot, not just the latest, resolves to an existing hash.
	existing, err := a.snapshots.Load(snap.Hash)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if existing != nil {
		a.logger.Debug("schema unchanged, snapshot deduplicated", "hash", snap.Hash)
		return existing, nil
	}

	if err := a.snapshots.Save(snap); err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}
	a.logger.Info("snapshot saved", "hash", snap.Hash, "parent", parent)
	return snap, nil
}

// RecordVersion appends a new schema version to the ledger and saves the
// matching content-addressed snapshot.
func (a *App) RecordVersion(entities core.Entities, ver, description string) (*version.SchemaVersion, error) {
	sv, err := a.ledger.Record(entities, version.RecordOptions{
		Version:     ver,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	snap, err := snapshot.Create(entities, snapshot.Metadata{
		CreatedAt:   a.clock.Now(),
		Description: description,
	}, sv.PreviousHash)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot: %w", err)
	}
	if err := a.snapshots.Save(snap); err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}

	a.logger.Info("schema version recorded",
		"version", sv.Version, "hash", sv.Hash, "changed", len(sv.ChangedEntities))
	return sv, nil
}

// Versions returns all recorded schema versions in append order.
func (a *App) Versions() ([]version.SchemaVersion, error) {
	return a.ledger.List()
}

// CurrentVersion returns the most recently recorded version, or nil.
func (a *App) CurrentVersion() (*version.SchemaVersion, error) {
	return a.ledger.Current()
}

// Diff returns the entity-level differences between two recorded versions,
// or nil if either version is unknown.
func (a *App) Diff(fromVersion, toVersion string) (*version.Diff, error) {
	return a.ledger.Diff(fromVersion, toVersion)
}

// Promote points an environment at a snapshot. The hash may be a unique
// prefix. Unlike the tracker itself, Promote validates that the snapshot
// exists before moving the pointer.
func (a *App) Promote(environment, hashOrPrefix string) (*state.EnvironmentState, error) {
	snap, err := a.resolveSnapshot(hashOrPrefix)
	if err != nil {
		return nil, err
	}

	st, err := a.tracker.Update(environment, snap.Hash)
	if err != nil {
		return nil, fmt.Errorf("updating environment state: %w", err)
	}
	a.logger.Info("environment promoted", "environment", environment, "snapshot", snap.Hash)
	return st, nil
}

// CurrentSnapshot returns the snapshot hash active in the environment,
// or "" if none.
func (a *App) CurrentSnapshot(environment string) (string, error) {
	return a.tracker.CurrentSnapshot(environment)
}

// Environments returns all persisted environment states.
func (a *App) Environments() ([]state.EnvironmentState, error) {
	return a.tracker.All()
}

// Snapshots returns the snapshot manifest in insertion order.
func (a *App) Snapshots() ([]snapshot.ManifestEntry, error) {
	return a.snapshots.All()
}

// FindSnapshot returns the snapshot matching a hash or unique prefix, or
// nil if none matches.
func (a *App) FindSnapshot(hashOrPrefix string) (*snapshot.Snapshot, error) {
	snap, err := a.snapshots.Load(hashOrPrefix)
	if err != nil || snap != nil {
		return snap, err
	}
	return a.snapshots.Find(hashOrPrefix)
}

func (a *App) resolveSnapshot(hashOrPrefix string) (*snapshot.Snapshot, error) {
	snap, err := a.FindSnapshot(hashOrPrefix)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("snapshot not found: %s", hashOrPrefix)
	}
	return snap, nil
}

// SoftDeleteSnapshot moves a snapshot into the trash instead of destroying
// it. Snapshots still active in an environment are refused.
func (a *App) SoftDeleteSnapshot(hashOrPrefix, reason string) (*trash.Entry, error) {
	snap, err := a.resolveSnapshot(hashOrPrefix)
	if err != nil {
		return nil, err
	}

	states, err := a.tracker.All()
	if err != nil {
		return nil, err
	}
	for _, st := range states {
		if st.CurrentSnapshot == snap.Hash {
			return nil, fmt.Errorf("snapshot %s is active in environment %s", snap.Hash, st.Environment)
		}
	}

	entry, err := a.trash.Put(trash.TypeSchemaSnapshot, snap.Hash+".json", "snapshots/"+snap.Hash+".json", trash.EntryMetadata{
		Reason: reason,
	})
	if err != nil {
		return nil, fmt.Errorf("trashing snapshot: %w", err)
	}

	// The payload is already gone; this drops the manifest index entry.
	if err := a.snapshots.Delete(snap.Hash); err != nil {
		return nil, fmt.Errorf("deindexing snapshot: %w", err)
	}

	a.logger.Info("snapshot trashed", "hash", snap.Hash, "trash_id", entry.ID, "expires_at", entry.ExpiresAt)
	return entry, nil
}

// RestoreTrash restores a trash entry to its original location. Restored
// schema snapshots are re-indexed in the snapshot manifest.
func (a *App) RestoreTrash(id string) (*trash.Entry, error) {
	entry, err := a.trash.Restore(id)
	if err != nil {
		return nil, err
	}

	if entry.Type == trash.TypeSchemaSnapshot {
		hash := trimJSONSuffix(entry.Name)
		snap, err := a.snapshots.Load(hash)
		if err != nil {
			return nil, fmt.Errorf("reloading restored snapshot: %w", err)
		}
		if snap != nil {
			if err := a.snapshots.Save(snap); err != nil {
				return nil, fmt.Errorf("reindexing restored snapshot: %w", err)
			}
		}
	}

	a.logger.Info("trash entry restored", "id", id, "type", string(entry.Type))
	return entry, nil
}

func trimJSONSuffix(name string) string {
	const suffix = ".json"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// Trash gives the CLI access to trash listing, purging, and status.
func (a *App) Trash() *trash.Manager { return a.trash }

// Backups gives the CLI access to backup bookkeeping.
func (a *App) Backups() *backup.Manager { return a.backups }

// RecordMutation audits a row-level mutation in the given environment,
// tagged with the snapshot currently active there. It returns the entry
// and true when the tracking policy recorded one.
func (a *App) RecordMutation(environment, table, recordID, mutation string, oldData, newData any, opts audit.EntryOptions) (*audit.Entry, bool, error) {
	op, err := audit.FromMutation(mutation)
	if err != nil {
		return nil, false, err
	}

	snapHash, err := a.tracker.CurrentSnapshot(environment)
	if err != nil {
		return nil, false, fmt.Errorf("resolving active snapshot: %w", err)
	}

	return a.auditLog.Record(table, recordID, op, oldData, newData, snapHash, opts)
}

// AuditEntries returns up to limit audit entries, newest first.
func (a *App) AuditEntries(limit int) ([]audit.Entry, error) {
	return a.auditLog.List(limit)
}

// AuditEntriesForSnapshot returns the audit history of one schema generation.
func (a *App) AuditEntriesForSnapshot(snapshotHash string) ([]audit.Entry, error) {
	return a.auditLog.BySnapshot(snapshotHash)
}

// PruneAudit removes audit entries older than the configured retention and
// returns how many were removed. A no-op when no retention is configured.
func (a *App) PruneAudit() (int, error) {
	return a.auditLog.Prune()
}

// SweepReport summarizes one maintenance sweep.
type SweepReport struct {
	TrashPurged    int
	BackupsRemoved int
	AuditPruned    int
}

// Sweep purges expired trash entries, removes expired backups, and prunes
// expired audit entries. Partial progress is reported even on error.
func (a *App) Sweep() (SweepReport, error) {
	var report SweepReport
	var errs []error

	n, err := a.trash.Sweep()
	report.TrashPurged = n
	if err != nil {
		errs = append(errs, fmt.Errorf("sweeping trash: %w", err))
	}

	n, err = a.backups.PruneExpired()
	report.BackupsRemoved = n
	if err != nil {
		errs = append(errs, fmt.Errorf("pruning backups: %w", err))
	}

	n, err = a.auditLog.Prune()
	report.AuditPruned = n
	if err != nil {
		errs = append(errs, fmt.Errorf("pruning audit log: %w", err))
	}

	a.logger.Info("maintenance sweep finished",
		"trash_purged", report.TrashPurged,
		"backups_removed", report.BackupsRemoved,
		"audit_pruned", report.AuditPruned)
	return report, errors.Join(errs...)
}

// Close releases the audit store and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.auditStore.Close(); err != nil {
		firstErr = fmt.Errorf("closing audit store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
