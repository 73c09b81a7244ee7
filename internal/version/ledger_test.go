package version_test

import (
	"errors"
	"testing"

	"schemavault/internal/core"
	"schemavault/internal/storage"
	"schemavault/internal/testutil"
	"schemavault/internal/version"
)

func userSchema(emailType string) core.Entities {
	return core.Entities{
		"User": map[string]any{
			"fields": map[string]any{"id": "uuid", "email": emailType},
		},
	}
}

func newTestLedger() *version.Ledger {
	return version.NewLedger(storage.NewMemoryStore(), testutil.FixedClock())
}

func TestLedger_Record(t *testing.T) {
	t.Run("first version is 0.0.1", func(t *testing.T) {
		ledger := newTestLedger()

		sv, err := ledger.Record(userSchema("string"), version.RecordOptions{})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if sv.Version != "0.0.1" {
			t.Errorf("Record() version = %s, want 0.0.1", sv.Version)
		}
		if sv.PreviousVersion != "" {
			t.Errorf("Record() previousVersion = %s, want empty", sv.PreviousVersion)
		}
		if len(sv.ChangedEntities) != 1 || sv.ChangedEntities[0] != "User" {
			t.Errorf("Record() changedEntities = %v, want [User]", sv.ChangedEntities)
		}
	})

	t.Run("bumps only the patch component", func(t *testing.T) {
		ledger := newTestLedger()

		schemas := []core.Entities{
			userSchema("string"),
			userSchema("citext"),
			userSchema("varchar"),
		}
		want := []string{"0.0.1", "0.0.2", "0.0.3"}

		for i, entities := range schemas {
			sv, err := ledger.Record(entities, version.RecordOptions{})
			if err != nil {
				t.Fatalf("Record() #%d error = %v", i+1, err)
			}
			if sv.Version != want[i] {
				t.Errorf("Record() #%d version = %s, want %s", i+1, sv.Version, want[i])
			}
		}
	})

	t.Run("unchanged schema is rejected", func(t *testing.T) {
		ledger := newTestLedger()

		if _, err := ledger.Record(userSchema("string"), version.RecordOptions{}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		_, err := ledger.Record(userSchema("string"), version.RecordOptions{})
		if !errors.Is(err, version.ErrUnchanged) {
			t.Errorf("Record() error = %v, want ErrUnchanged", err)
		}

		versions, _ := ledger.List()
		if len(versions) != 1 {
			t.Errorf("history length = %d after rejected record, want 1", len(versions))
		}
	})

	t.Run("explicit version is honored", func(t *testing.T) {
		ledger := newTestLedger()

		sv, err := ledger.Record(userSchema("string"), version.RecordOptions{Version: "1.2.0"})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if sv.Version != "1.2.0" {
			t.Errorf("Record() version = %s, want 1.2.0", sv.Version)
		}

		// The next auto bump continues from the explicit version.
		next, err := ledger.Record(userSchema("citext"), version.RecordOptions{})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if next.Version != "1.2.1" {
			t.Errorf("Record() version = %s, want 1.2.1", next.Version)
		}
	})

	t.Run("links previous version and hash", func(t *testing.T) {
		ledger := newTestLedger()

		first, err := ledger.Record(userSchema("string"), version.RecordOptions{})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		second, err := ledger.Record(userSchema("citext"), version.RecordOptions{})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if second.PreviousVersion != first.Version {
			t.Errorf("previousVersion = %s, want %s", second.PreviousVersion, first.Version)
		}
		if second.PreviousHash != first.Hash {
			t.Errorf("previousHash = %s, want %s", second.PreviousHash, first.Hash)
		}
	})
}

func TestDetectChangedEntities(t *testing.T) {
	old := core.Entities{
		"User": map[string]any{"fields": map[string]any{"id": "uuid"}},
		"Post": map[string]any{"fields": map[string]any{"id": "uuid"}},
		"Tag":  map[string]any{"fields": map[string]any{"id": "uuid"}},
	}
	new := core.Entities{
		"User":    map[string]any{"fields": map[string]any{"id": "uuid", "email": "string"}}, // modified
		"Post":    map[string]any{"fields": map[string]any{"id": "uuid"}},                    // unchanged
		"Comment": map[string]any{"fields": map[string]any{"id": "uuid"}},                    // added
		// Tag removed
	}

	changed, err := version.DetectChangedEntities(old, new)
	if err != nil {
		t.Fatalf("DetectChangedEntities() error = %v", err)
	}

	want := []string{"Comment", "Tag", "User"}
	if len(changed) != len(want) {
		t.Fatalf("DetectChangedEntities() = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Errorf("DetectChangedEntities()[%d] = %s, want %s", i, changed[i], want[i])
		}
	}
}

func TestDetectChangedEntities_NilOld(t *testing.T) {
	new := core.Entities{
		"A": map[string]any{"x": 1},
		"B": map[string]any{"y": 2},
	}

	changed, err := version.DetectChangedEntities(nil, new)
	if err != nil {
		t.Fatalf("DetectChangedEntities() error = %v", err)
	}
	if len(changed) != 2 {
		t.Errorf("DetectChangedEntities() = %v, want every entity reported", changed)
	}
}

func TestLedger_Diff(t *testing.T) {
	ledger := newTestLedger()

	v1 := core.Entities{
		"User": map[string]any{"fields": map[string]any{"id": "uuid"}},
		"Tag":  map[string]any{"fields": map[string]any{"id": "uuid"}},
	}
	v2 := core.Entities{
		"User": map[string]any{"fields": map[string]any{"id": "uuid", "email": "string"}},
		"Post": map[string]any{"fields": map[string]any{"id": "uuid"}},
	}

	if _, err := ledger.Record(v1, version.RecordOptions{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := ledger.Record(v2, version.RecordOptions{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	diff, err := ledger.Diff("0.0.1", "0.0.2")
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if diff == nil {
		t.Fatal("Diff() = nil, want diff")
	}

	if len(diff.Added) != 1 || diff.Added[0] != "Post" {
		t.Errorf("Diff() added = %v, want [Post]", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "Tag" {
		t.Errorf("Diff() removed = %v, want [Tag]", diff.Removed)
	}
	if len(diff.Modified) != 1 || diff.Modified[0] != "User" {
		t.Errorf("Diff() modified = %v, want [User]", diff.Modified)
	}
}

func TestLedger_DiffMissingArchive(t *testing.T) {
	ledger := newTestLedger()

	if _, err := ledger.Record(userSchema("string"), version.RecordOptions{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	diff, err := ledger.Diff("0.0.1", "9.9.9")
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if diff != nil {
		t.Errorf("Diff() = %v, want nil when an archive is missing", diff)
	}
}

func TestLedger_HasChanged(t *testing.T) {
	ledger := newTestLedger()

	changed, err := ledger.HasChanged(userSchema("string"))
	if err != nil {
		t.Fatalf("HasChanged() error = %v", err)
	}
	if !changed {
		t.Error("HasChanged() = false with no history, want true")
	}

	if _, err := ledger.Record(userSchema("string"), version.RecordOptions{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	changed, err = ledger.HasChanged(userSchema("string"))
	if err != nil {
		t.Fatalf("HasChanged() error = %v", err)
	}
	if changed {
		t.Error("HasChanged() = true for identical schema, want false")
	}

	changed, err = ledger.HasChanged(userSchema("citext"))
	if err != nil {
		t.Fatalf("HasChanged() error = %v", err)
	}
	if !changed {
		t.Error("HasChanged() = false for modified schema, want true")
	}
}

func TestLedger_CurrentAndGet(t *testing.T) {
	ledger := newTestLedger()

	current, err := ledger.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != nil {
		t.Errorf("Current() = %v with no history, want nil", current)
	}

	if _, err := ledger.Record(userSchema("string"), version.RecordOptions{Description: "first"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := ledger.Record(userSchema("citext"), version.RecordOptions{Description: "second"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	current, err = ledger.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current == nil || current.Version != "0.0.2" {
		t.Errorf("Current() = %v, want version 0.0.2", current)
	}

	got, err := ledger.Get("0.0.1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Description != "first" {
		t.Errorf("Get(0.0.1) = %v, want description \"first\"", got)
	}

	missing, err := ledger.Get("4.5.6")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if missing != nil {
		t.Errorf("Get() = %v for unknown version, want nil", missing)
	}
}

func TestLedger_VersionPadding(t *testing.T) {
	ledger := newTestLedger()

	// A two-segment explicit version gets a patch segment on the next bump.
	if _, err := ledger.Record(userSchema("string"), version.RecordOptions{Version: "1.5"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	sv, err := ledger.Record(userSchema("citext"), version.RecordOptions{})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if sv.Version != "1.5.1" {
		t.Errorf("Record() version = %s, want 1.5.1", sv.Version)
	}
}

func TestLedger_Archive(t *testing.T) {
	ledger := newTestLedger()

	if _, err := ledger.Record(userSchema("string"), version.RecordOptions{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entities, err := ledger.Archive("0.0.1")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if entities == nil {
		t.Fatal("Archive() = nil, want archived entities")
	}
	if _, ok := entities["User"]; !ok {
		t.Errorf("Archive() missing User entity: %v", entities)
	}

	missing, err := ledger.Archive("0.0.9")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if missing != nil {
		t.Errorf("Archive() = %v for unknown version, want nil", missing)
	}
}
