package backup

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"schemavault/internal/core"
	"schemavault/internal/retention"
)

const (
	manifestDir    = "backups/manifests"
	fullDir        = "backups/snapshots"
	incrementalDir = "backups/incremental"

	chainSuffix = ".chain.json"
)

// Manager registers, lists, and expires backups, and assembles restorable
// chains. When an encryptor is set, stored artifacts are encrypted at rest.
type Manager struct {
	fs    core.Store
	clock core.Clock
	enc   core.Encryptor
}

// NewManager creates a backup manager over the given storage backend.
func NewManager(fs core.Store, clock core.Clock) *Manager {
	return &Manager{fs: fs, clock: clock}
}

// WithEncryptor returns a manager that encrypts stored artifacts.
func (m *Manager) WithEncryptor(enc core.Encryptor) *Manager {
	m.enc = enc
	return m
}

// Filename builds the artifact filename for a snapshot and timestamp.
// ext defaults to "sql.gz".
func Filename(snapshotHash string, ts time.Time, ext string) string {
	if ext == "" {
		ext = "sql.gz"
	}
	short := snapshotHash
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("backup-%s-%s.%s", short, ts.UTC().Format("20060102T150405Z"), ext)
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func payloadPath(kind Kind, filename string) string {
	if kind == KindIncremental {
		return incrementalDir + "/" + filename
	}
	return fullDir + "/" + filename
}

func manifestPath(filename string) string {
	return manifestDir + "/" + filename + ".json"
}

// Register writes a manifest entry associating a snapshot and timestamp
// with a backup file. The artifact itself may live outside the store
// (e.g. a dump produced by an external tool).
func (m *Manager) Register(meta Metadata, filename string) error {
	size := meta.CompressedSize
	if size == 0 {
		size = meta.Database.Size
	}
	entry := Entry{
		Filename: filename,
		Metadata: meta,
		FilePath: payloadPath(meta.Kind, filename),
		Size:     size,
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup manifest entry: %w", err)
	}
	if err := m.fs.Write(manifestPath(filename), data); err != nil {
		return fmt.Errorf("writing backup manifest entry: %w", err)
	}
	return nil
}

// Store writes a backup artifact into the store and registers it. The
// checksum always covers the raw dump bytes; compression and encryption
// apply on top, and CompressedSize records what actually hit the store.
func (m *Manager) Store(data []byte, meta Metadata) (*Entry, error) {
	meta.Checksum = Checksum(data)
	if meta.Database.Size == 0 {
		meta.Database.Size = int64(len(data))
	}

	stored := data
	if meta.Compression == "gzip" {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("compressing backup: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("finalizing compression: %w", err)
		}
		stored = buf.Bytes()
	}

	if m.enc != nil {
		var buf bytes.Buffer
		if err := m.enc.Encrypt(bytes.NewReader(stored), &buf); err != nil {
			return nil, fmt.Errorf("encrypting backup: %w", err)
		}
		stored = buf.Bytes()
	}
	meta.CompressedSize = int64(len(stored))

	filename := Filename(meta.Snapshot, meta.Timestamp, "")
	if err := m.fs.Write(payloadPath(meta.Kind, filename), stored); err != nil {
		return nil, fmt.Errorf("writing backup artifact: %w", err)
	}
	if err := m.Register(meta, filename); err != nil {
		return nil, err
	}
	return m.Load(filename)
}

// Load returns the registered entry for filename, or nil if it is missing
// or unparsable.
func (m *Manager) Load(filename string) (*Entry, error) {
	data, err := m.fs.Read(manifestPath(filename))
	if err != nil {
		return nil, fmt.Errorf("reading backup manifest entry: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil
	}
	return &entry, nil
}

// LoadMetadata returns the metadata for a registered backup, or nil.
func (m *Manager) LoadMetadata(filename string) (*Metadata, error) {
	entry, err := m.Load(filename)
	if err != nil || entry == nil {
		return nil, err
	}
	meta := entry.Metadata
	return &meta, nil
}

// List returns all registered backups in chronological order.
func (m *Manager) List() ([]Entry, error) {
	names, err := m.fs.List(manifestDir)
	if err != nil {
		return nil, fmt.Errorf("listing backup manifests: %w", err)
	}

	var entries []Entry
	for _, name := range names {
		if strings.HasSuffix(name, chainSuffix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		entry, err := m.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Metadata.Timestamp.Before(entries[j].Metadata.Timestamp)
	})
	return entries, nil
}

// ForSnapshot returns all registered backups for a snapshot hash, in
// chronological order.
func (m *Manager) ForSnapshot(snapshotHash string) ([]Entry, error) {
	entries, err := m.List()
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, e := range entries {
		if e.Metadata.Snapshot == snapshotHash {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// Chain locates the full backup for baseSnapshot and all registered
// incrementals that reference it, in chronological order. It returns nil
// if no full backup exists for that base.
func (m *Manager) Chain(baseSnapshot string) (*Chain, error) {
	entries, err := m.List()
	if err != nil {
		return nil, err
	}

	var full *Entry
	for i := range entries {
		e := &entries[i]
		if e.Metadata.Kind == KindFull && e.Metadata.Snapshot == baseSnapshot {
			full = e
			break
		}
	}
	if full == nil {
		return nil, nil
	}

	chain := &Chain{
		Base:       baseSnapshot,
		FullBackup: *full,
		Size:       full.Size,
		TotalSize:  full.Size,
	}
	for _, e := range entries {
		if e.Metadata.Kind != KindIncremental || e.Metadata.BaseSnapshot != baseSnapshot {
			continue
		}
		chain.Incrementals = append(chain.Incrementals, Incremental{
			Snapshot: e.Metadata.Snapshot,
			File:     e.Filename,
			Size:     e.Size,
			Changes:  e.Metadata.Changes,
		})
		chain.TotalSize += e.Size
	}
	return chain, nil
}

// SaveChain persists a chain descriptor for later reconstruction.
func (m *Manager) SaveChain(chain *Chain) error {
	data, err := json.MarshalIndent(chain, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup chain: %w", err)
	}
	path := manifestDir + "/" + chain.Base + chainSuffix
	if err := m.fs.Write(path, data); err != nil {
		return fmt.Errorf("writing backup chain: %w", err)
	}
	return nil
}

// LoadChain re-reads a persisted chain descriptor, or returns nil if it is
// missing or unparsable.
func (m *Manager) LoadChain(chainFile string) (*Chain, error) {
	data, err := m.fs.Read(manifestDir + "/" + chainFile)
	if err != nil {
		return nil, fmt.Errorf("reading backup chain: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var chain Chain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, nil
	}
	return &chain, nil
}

// TotalSize returns the total bytes across all registered backups.
func (m *Manager) TotalSize() (int64, error) {
	entries, err := m.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total, nil
}

// Expired evaluates the metadata's retention policy against its timestamp.
func Expired(meta Metadata, now time.Time) (bool, error) {
	days, err := retention.ParseDays(meta.RetentionPolicy)
	if err != nil {
		return false, fmt.Errorf("parsing backup retention: %w", err)
	}
	return retention.Expired(meta.Timestamp, days, now), nil
}

// ExpiredBackups filters all registered backups through the retention check.
func (m *Manager) ExpiredBackups() ([]Entry, error) {
	entries, err := m.List()
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var expired []Entry
	for _, e := range entries {
		isExpired, err := Expired(e.Metadata, now)
		if err != nil {
			return nil, fmt.Errorf("backup %s: %w", e.Filename, err)
		}
		if isExpired {
			expired = append(expired, e)
		}
	}
	return expired, nil
}

// Remove deletes a backup's artifact and manifest entry.
func (m *Manager) Remove(entry Entry) error {
	if err := m.fs.Remove(entry.FilePath); err != nil {
		return fmt.Errorf("removing backup artifact: %w", err)
	}
	if err := m.fs.Remove(manifestPath(entry.Filename)); err != nil {
		return fmt.Errorf("removing backup manifest entry: %w", err)
	}
	return nil
}

// PruneExpired removes all expired backups and returns how many were removed.
func (m *Manager) PruneExpired() (int, error) {
	expired, err := m.ExpiredBackups()
	if err != nil {
		return 0, err
	}
	for _, e := range expired {
		if err := m.Remove(e); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}
