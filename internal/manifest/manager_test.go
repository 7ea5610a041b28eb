package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stencilhq/stencil/internal/defs"
)

func TestManagerRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	m := NewManager()
	found, err := m.Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load() found a manifest in an empty project")
	}

	m.Track("a.txt", "hash-a", "1.0.0")
	m.Track("b/c.txt", "hash-c", "1.0.0")
	if err := m.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded := NewManager()
	found, err = reloaded.Load(root)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if !found {
		t.Fatal("reload did not find the saved manifest")
	}

	entry, ok := reloaded.Get("a.txt")
	if !ok || entry.LastAppliedHash != "hash-a" || entry.SchemaVersion != "1.0.0" {
		t.Errorf("Get(a.txt) = %+v, %v", entry, ok)
	}
	if entry.AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}

	want := []string{"a.txt", "b/c.txt"}
	if got := reloaded.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestManagerRemove(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Track("a.txt", "h", "1.0.0")
	m.Remove("a.txt")
	if _, ok := m.Get("a.txt"); ok {
		t.Error("entry survived Remove")
	}
	// Removing an absent path is a no-op.
	m.Remove("never-tracked")
}

func TestManagerTrackOverwrites(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Track("a.txt", "old", "1.0.0")
	m.Track("a.txt", "new", "2.0.0")

	entry, _ := m.Get("a.txt")
	if entry.LastAppliedHash != "new" || entry.SchemaVersion != "2.0.0" {
		t.Errorf("entry = %+v", entry)
	}
	if got := len(m.Paths()); got != 1 {
		t.Errorf("Paths() returned %d entries, want 1", got)
	}
}

func TestLoadCorruptManifest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, defs.StencilDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, defs.ManifestJSON), []byte("{ not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	if _, err := m.Load(root); err == nil {
		t.Error("Load() accepted corrupt manifest")
	}
}

func TestHashBytes(t *testing.T) {
	t.Parallel()

	// sha256 of "hello"
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := HashBytes([]byte("hello")); got != want {
		t.Errorf("HashBytes() = %q, want %q", got, want)
	}
}

func TestHashFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, ok, err := HashFile(path)
	if err != nil || !ok {
		t.Fatalf("HashFile() = %v, %v", ok, err)
	}
	if hash != HashBytes([]byte("hello")) {
		t.Errorf("HashFile() = %q", hash)
	}

	_, ok, err = HashFile(filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatalf("HashFile(absent) error = %v", err)
	}
	if ok {
		t.Error("HashFile(absent) reported existence")
	}
}
