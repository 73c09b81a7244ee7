package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for a schemavault project.
type Config struct {
	ProjectDir string           `toml:"project_dir"`
	LogDir     string           `toml:"log_dir"`
	Storage    StorageConfig    `toml:"storage"`
	Audit      AuditConfig      `toml:"audit"`
	Backup     BackupConfig     `toml:"backup"`
	Trash      TrashConfig      `toml:"trash"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// StorageConfig represents configuration for the storage backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "filesystem" (default), "memory", or "s3"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// TrackRule names an entity whose row mutations are audited, and which
// operations to record. The single operation "all" tracks everything.
type TrackRule struct {
	Entity     string   `toml:"entity"`
	Operations []string `toml:"operations"`
}

// AuditConfig drives filtering and storage of the audit log.
// Storage uses a tagged union pattern - "database" requires DatabasePath.
type AuditConfig struct {
	Enabled      bool        `toml:"enabled"`
	Storage      string      `toml:"storage"` // "file" (default), "database", or "s3"
	Retention    string      `toml:"retention,omitempty"` // e.g. "90d"
	DatabasePath string      `toml:"database_path,omitempty"`
	Track        []TrackRule `toml:"track"`
}

// BackupConfig holds backup bookkeeping defaults.
type BackupConfig struct {
	RetentionPolicy string `toml:"retention_policy"` // e.g. "90d"
	Compression     string `toml:"compression"`      // "gzip" or "none"
	Encrypt         bool   `toml:"encrypt"`
}

// TrashConfig holds the soft-delete retention window.
type TrashConfig struct {
	RetentionDays int `toml:"retention_days"`
}

// EncryptionConfig holds paths to the age key pair used for backup encryption.
type EncryptionConfig struct {
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided project directory and
// default values.
func NewConfig(projectDir string) *Config {
	return &Config{
		ProjectDir: projectDir,
		LogDir:     filepath.Join(projectDir, "log"),
		Storage:    StorageConfig{Type: "filesystem"},
		Audit: AuditConfig{
			Enabled: false,
			Storage: "file",
		},
		Backup: BackupConfig{
			RetentionPolicy: "90d",
			Compression:     "gzip",
		},
		Trash: TrashConfig{RetentionDays: 30},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(projectDir, "keys", "svault.pub"),
			PrivateKeyPath: filepath.Join(projectDir, "keys", "svault.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
