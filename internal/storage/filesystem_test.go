package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestFileSystemStore(t *testing.T) *FileSystemStore {
	t.Helper()
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return store
}

func TestFileSystemStore_ReadWrite(t *testing.T) {
	store := newTestFileSystemStore(t)

	data := []byte(`{"hash":"abc"}`)
	if err := store.Write("snapshots/abc.json", data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := store.Read("snapshots/abc.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read() = %q, want %q", got, data)
	}
}

func TestFileSystemStore_ReadMissing(t *testing.T) {
	store := newTestFileSystemStore(t)

	data, err := store.Read("missing.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if data != nil {
		t.Errorf("Read() = %q, want nil for missing file", data)
	}
}

func TestFileSystemStore_WriteCreatesParents(t *testing.T) {
	store := newTestFileSystemStore(t)

	if err := store.Write("a/b/c/deep.json", []byte("{}")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	exists, err := store.Exists("a/b/c/deep.json")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false after nested Write")
	}
}

func TestFileSystemStore_WriteOverwrites(t *testing.T) {
	store := newTestFileSystemStore(t)

	if err := store.Write("file", []byte("first")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := store.Write("file", []byte("second")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, _ := store.Read("file")
	if string(got) != "second" {
		t.Errorf("Read() = %q, want second", got)
	}
}

func TestFileSystemStore_WriteLeavesNoTempFiles(t *testing.T) {
	store := newTestFileSystemStore(t)

	if err := store.Write("dir/file", []byte("content")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(store.Root(), "dir"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "file" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contents = %v, want [file]", names)
	}
}

func TestFileSystemStore_List(t *testing.T) {
	store := newTestFileSystemStore(t)

	t.Run("missing directory yields empty list", func(t *testing.T) {
		names, err := store.List("nowhere")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(names) != 0 {
			t.Errorf("List() = %v, want empty", names)
		}
	})

	t.Run("lists direct children", func(t *testing.T) {
		store.Write("state/production.json", []byte("{}"))
		store.Write("state/staging.json", []byte("{}"))

		names, err := store.List("state")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(names) != 2 {
			t.Errorf("List() = %v, want 2 entries", names)
		}
	})
}

func TestFileSystemStore_Remove(t *testing.T) {
	store := newTestFileSystemStore(t)

	store.Write("file", []byte("x"))
	if err := store.Remove("file"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	exists, _ := store.Exists("file")
	if exists {
		t.Error("Exists() = true after Remove")
	}

	// Removing a missing file is a no-op.
	if err := store.Remove("file"); err != nil {
		t.Errorf("Remove() second call error = %v", err)
	}
}

func TestNewFileSystemStore_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "project")

	store, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if store.Root() != root {
		t.Errorf("Root() = %s, want %s", store.Root(), root)
	}

	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("root is not a directory")
	}
}
