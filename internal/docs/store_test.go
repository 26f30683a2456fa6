package docs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
)

func TestCategory(t *testing.T) {
	cases := map[string]string{
		"docs/dev/database.sealed":      "dev",
		"docs/production/api.sealed":    "production",
		"docs/staging/nested/db.sealed": "staging",
		"docs":                          "",
		"README.md":                     "",
		"other/dev/x.sealed":            "",
	}
	for path, want := range cases {
		if got := Category(path); got != want {
			t.Errorf("Category(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFileStoreListFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	for _, path := range []string{
		"docs/staging/b.sealed",
		"docs/dev/a.sealed",
		"docs/dev/notes.txt",
		"docs/dev/nested/c.sealed",
	} {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	store := &FileStore{Root: root}
	paths, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{
		"docs/dev/a.sealed",
		"docs/dev/nested/c.sealed",
		"docs/staging/b.sealed",
	}
	if len(paths) != len(want) {
		t.Fatalf("got %d paths %v, want %d", len(paths), paths, len(want))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestFileStoreListEmptyTree(t *testing.T) {
	store := &FileStore{Root: t.TempDir()}
	paths, err := store.List()
	if err != nil {
		t.Fatalf("List failed on missing docs dir: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("got %d paths, want 0", len(paths))
	}
}

func TestFileStoreReadWrite(t *testing.T) {
	store := &FileStore{Root: t.TempDir()}

	if err := store.Write("docs/dev/new.sealed", []byte("envelope")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := store.Read("docs/dev/new.sealed")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "envelope" {
		t.Errorf("Read = %q, want %q", data, "envelope")
	}

	_, err = store.Read("docs/dev/missing.sealed")
	if !errors.Is(err, kerrors.ErrDocumentNotFound) {
		t.Errorf("error = %v, want ErrDocumentNotFound", err)
	}
}

func TestMemStoreIsolation(t *testing.T) {
	store := NewMemStore()
	original := []byte("data")
	if err := store.Write("docs/dev/x.sealed", original); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	read, err := store.Read("docs/dev/x.sealed")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	read[0] = 'X'

	again, _ := store.Read("docs/dev/x.sealed")
	if string(again) != "data" {
		t.Error("mutating a read slice must not affect the store")
	}
}
