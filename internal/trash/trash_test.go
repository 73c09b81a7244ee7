package trash_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"schemavault/internal/storage"
	"schemavault/internal/testutil"
	"schemavault/internal/trash"
)

func newTestManager(retentionDays int) (*trash.Manager, *storage.MemoryStore, *testutil.StubClock) {
	fs := storage.NewMemoryStore()
	clock := testutil.FixedClock()
	mgr := trash.NewManager(fs, clock, testutil.NewStubIDGenerator(), retentionDays)
	return mgr, fs, clock
}

func seedPayload(t *testing.T, fs *storage.MemoryStore, path string, data []byte) {
	t.Helper()
	if err := fs.Write(path, data); err != nil {
		t.Fatalf("seeding payload at %s: %v", path, err)
	}
}

func TestManager_Put(t *testing.T) {
	t.Run("moves the payload into the trash", func(t *testing.T) {
		mgr, fs, clock := newTestManager(30)
		seedPayload(t, fs, "snapshots/abc.json", []byte(`{"hash":"abc"}`))

		entry, err := mgr.Put(trash.TypeSchemaSnapshot, "abc.json", "snapshots/abc.json",
			trash.EntryMetadata{Reason: "superseded"})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if entry.ID != "id-1" {
			t.Errorf("entry ID = %s, want id-1", entry.ID)
		}
		if want := clock.Now().AddDate(0, 0, 30); !entry.ExpiresAt.Equal(want) {
			t.Errorf("expiresAt = %v, want %v", entry.ExpiresAt, want)
		}

		// Original is gone, payload lives in the trash area.
		original, _ := fs.Read("snapshots/abc.json")
		if original != nil {
			t.Error("original payload still present after Put")
		}
		trashed, _ := fs.Read(entry.TrashPath)
		if !bytes.Equal(trashed, []byte(`{"hash":"abc"}`)) {
			t.Errorf("trashed payload = %q, want original content", trashed)
		}
	})

	t.Run("records the payload size", func(t *testing.T) {
		mgr, fs, _ := newTestManager(30)
		seedPayload(t, fs, "data/table.json", []byte("0123456789"))

		entry, err := mgr.Put(trash.TypeDataSnapshot, "table.json", "data/table.json", trash.EntryMetadata{})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if entry.Metadata.SizeBytes != 10 {
			t.Errorf("sizeBytes = %d, want 10", entry.Metadata.SizeBytes)
		}
	})

	t.Run("refuses a missing payload", func(t *testing.T) {
		mgr, _, _ := newTestManager(30)

		if _, err := mgr.Put(trash.TypeMigration, "x", "nowhere/x", trash.EntryMetadata{}); err == nil {
			t.Error("Put() expected error for missing payload")
		}
	})
}

func TestManager_Status(t *testing.T) {
	mgr, fs, clock := newTestManager(30)
	seedPayload(t, fs, "snapshots/a.json", []byte("{}"))

	entry, err := mgr.Put(trash.TypeSchemaSnapshot, "a.json", "snapshots/a.json", trash.EntryMetadata{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if got := mgr.Status(*entry); got != trash.StatusActive {
		t.Errorf("Status() = %s, want active", got)
	}

	clock.Advance(31 * 24 * time.Hour)
	if got := mgr.Status(*entry); got != trash.StatusExpired {
		t.Errorf("Status() after expiry = %s, want expired", got)
	}

	now := clock.Now()
	entry.RestoredAt = &now
	if got := mgr.Status(*entry); got != trash.StatusRestored {
		t.Errorf("Status() for restored entry = %s, want restored", got)
	}
}

func TestManager_Restore(t *testing.T) {
	t.Run("moves the payload back", func(t *testing.T) {
		mgr, fs, _ := newTestManager(30)
		seedPayload(t, fs, "snapshots/a.json", []byte(`{"hash":"a"}`))

		entry, err := mgr.Put(trash.TypeSchemaSnapshot, "a.json", "snapshots/a.json", trash.EntryMetadata{})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		restored, err := mgr.Restore(entry.ID)
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if restored.RestoredAt == nil {
			t.Error("Restore() did not stamp restoredAt")
		}

		payload, _ := fs.Read("snapshots/a.json")
		if !bytes.Equal(payload, []byte(`{"hash":"a"}`)) {
			t.Errorf("restored payload = %q, want original content", payload)
		}
		gone, _ := fs.Read(entry.TrashPath)
		if gone != nil {
			t.Error("trash payload still present after restore")
		}
	})

	t.Run("refuses a second restore", func(t *testing.T) {
		mgr, fs, _ := newTestManager(30)
		seedPayload(t, fs, "snapshots/a.json", []byte("{}"))

		entry, _ := mgr.Put(trash.TypeSchemaSnapshot, "a.json", "snapshots/a.json", trash.EntryMetadata{})
		if _, err := mgr.Restore(entry.ID); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if _, err := mgr.Restore(entry.ID); err == nil {
			t.Error("Restore() expected error for already restored entry")
		}
	})

	t.Run("refuses an expired entry", func(t *testing.T) {
		mgr, fs, clock := newTestManager(30)
		seedPayload(t, fs, "snapshots/a.json", []byte("{}"))

		entry, _ := mgr.Put(trash.TypeSchemaSnapshot, "a.json", "snapshots/a.json", trash.EntryMetadata{})
		clock.Advance(31 * 24 * time.Hour)

		_, err := mgr.Restore(entry.ID)
		if !errors.Is(err, trash.ErrExpired) {
			t.Errorf("Restore() error = %v, want ErrExpired", err)
		}
	})

	t.Run("unknown ID", func(t *testing.T) {
		mgr, _, _ := newTestManager(30)
		if _, err := mgr.Restore("nope"); err == nil {
			t.Error("Restore() expected error for unknown ID")
		}
	})
}

func TestManager_Purge(t *testing.T) {
	mgr, fs, _ := newTestManager(30)
	seedPayload(t, fs, "snapshots/a.json", []byte("{}"))

	entry, err := mgr.Put(trash.TypeSchemaSnapshot, "a.json", "snapshots/a.json", trash.EntryMetadata{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := mgr.Purge(entry.ID); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}

	got, _ := mgr.Get(entry.ID)
	if got != nil {
		t.Error("Get() returned a purged entry")
	}
	payload, _ := fs.Read(entry.TrashPath)
	if payload != nil {
		t.Error("trash payload still present after purge")
	}

	// A purged entry cannot be restored.
	if _, err := mgr.Restore(entry.ID); err == nil {
		t.Error("Restore() expected error for purged entry")
	}

	// Purging twice fails: the entry no longer exists.
	if err := mgr.Purge(entry.ID); err == nil {
		t.Error("Purge() expected error for already purged entry")
	}
}

func TestManager_Sweep(t *testing.T) {
	mgr, fs, clock := newTestManager(30)

	seedPayload(t, fs, "snapshots/old.json", []byte("{}"))
	seedPayload(t, fs, "snapshots/restored.json", []byte("{}"))

	old, err := mgr.Put(trash.TypeSchemaSnapshot, "old.json", "snapshots/old.json", trash.EntryMetadata{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	restoredEntry, err := mgr.Put(trash.TypeSchemaSnapshot, "restored.json", "snapshots/restored.json", trash.EntryMetadata{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := mgr.Restore(restoredEntry.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	clock.Advance(20 * 24 * time.Hour)
	seedPayload(t, fs, "snapshots/fresh.json", []byte("{}"))
	fresh, err := mgr.Put(trash.TypeSchemaSnapshot, "fresh.json", "snapshots/fresh.json", trash.EntryMetadata{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// 31 days after the first Put: only the old, unrestored entry expires.
	clock.Advance(11 * 24 * time.Hour)
	purged, err := mgr.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("Sweep() purged = %d, want 1", purged)
	}

	if got, _ := mgr.Get(old.ID); got != nil {
		t.Error("expired entry survived the sweep")
	}
	if got, _ := mgr.Get(fresh.ID); got == nil {
		t.Error("active entry was purged by the sweep")
	}
	if got, _ := mgr.Get(restoredEntry.ID); got == nil {
		t.Error("restored entry was purged by the sweep")
	}
}

func TestManager_DefaultRetention(t *testing.T) {
	mgr, fs, clock := newTestManager(0)
	seedPayload(t, fs, "snapshots/a.json", []byte("{}"))

	entry, err := mgr.Put(trash.TypeSchemaSnapshot, "a.json", "snapshots/a.json", trash.EntryMetadata{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	want := clock.Now().AddDate(0, 0, trash.DefaultRetentionDays)
	if !entry.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v (default retention)", entry.ExpiresAt, want)
	}
}

func TestManager_List(t *testing.T) {
	mgr, fs, _ := newTestManager(30)

	for _, name := range []string{"a.json", "b.json"} {
		seedPayload(t, fs, "snapshots/"+name, []byte("{}"))
		if _, err := mgr.Put(trash.TypeSchemaSnapshot, name, "snapshots/"+name, trash.EntryMetadata{}); err != nil {
			t.Fatalf("Put(%s) error = %v", name, err)
		}
	}

	entries, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(entries))
	}
	if entries[0].Name != "a.json" || entries[1].Name != "b.json" {
		t.Errorf("List() order = [%s %s], want deletion order",
			entries[0].Name, entries[1].Name)
	}
}
