package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig("/data/svault")

	if cfg.ProjectDir != "/data/svault" {
		t.Errorf("ProjectDir = %s, want /data/svault", cfg.ProjectDir)
	}
	if cfg.LogDir != filepath.Join("/data/svault", "log") {
		t.Errorf("LogDir = %s, want project log dir", cfg.LogDir)
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("Storage.Type = %s, want filesystem", cfg.Storage.Type)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit.Enabled = true, want false by default")
	}
	if cfg.Audit.Storage != "file" {
		t.Errorf("Audit.Storage = %s, want file", cfg.Audit.Storage)
	}
	if cfg.Backup.RetentionPolicy != "90d" {
		t.Errorf("Backup.RetentionPolicy = %s, want 90d", cfg.Backup.RetentionPolicy)
	}
	if cfg.Backup.Compression != "gzip" {
		t.Errorf("Backup.Compression = %s, want gzip", cfg.Backup.Compression)
	}
	if cfg.Trash.RetentionDays != 30 {
		t.Errorf("Trash.RetentionDays = %d, want 30", cfg.Trash.RetentionDays)
	}
}

func TestManager_ReadWriteRoundTrip(t *testing.T) {
	original := NewConfig("/data/svault")
	original.Storage = StorageConfig{
		Type:     "s3",
		S3Bucket: "schema-backups",
		S3Region: "eu-west-1",
		S3Prefix: "prod/",
	}
	original.Audit = AuditConfig{
		Enabled:   true,
		Storage:   "database",
		Retention: "90d",
		Track: []TrackRule{
			{Entity: "users", Operations: []string{"all"}},
			{Entity: "orders", Operations: []string{"UPDATE", "DELETE"}},
		},
	}

	m := &Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Storage.Type != "s3" || got.Storage.S3Bucket != "schema-backups" {
		t.Errorf("storage round-trip = %+v, want s3/schema-backups", got.Storage)
	}
	if !got.Audit.Enabled || got.Audit.Retention != "90d" {
		t.Errorf("audit round-trip = %+v", got.Audit)
	}
	if len(got.Audit.Track) != 2 {
		t.Fatalf("track rules = %d, want 2", len(got.Audit.Track))
	}
	if got.Audit.Track[0].Entity != "users" || got.Audit.Track[0].Operations[0] != "all" {
		t.Errorf("first track rule = %+v, want users/all", got.Audit.Track[0])
	}
}

func TestManager_ReadInvalidTOML(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(strings.NewReader("this is not = [valid toml"))
	if err == nil {
		t.Error("Read() expected error for invalid TOML")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates a new config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "svault.toml")
		cfg := NewConfig("/data/svault")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.ProjectDir != "/data/svault" {
			t.Errorf("ProjectDir = %s, want /data/svault", got.ProjectDir)
		}
	})

	t.Run("refuses an existing config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "svault.toml")
		cfg := NewConfig("/data/svault")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Error("Init() expected error when config already exists")
		}
	})
}

func TestReadFromFile_Missing(t *testing.T) {
	_, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Error("ReadFromFile() expected error for missing file")
	}
}
