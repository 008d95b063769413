package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/michkochris/runepkg/internal/pkginfo"
)

func TestWriteReadRemove(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	info := pkginfo.PkgInfo{Name: "hello", Version: "2.12-1", Architecture: "amd64", FileList: []string{"usr/bin/hello"}}
	if err := d.Write("hello", "2.12-1", info); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := d.Read("hello", "2.12-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Name != "hello" || got.Version != "2.12-1" {
		t.Errorf("got %+v", got)
	}

	if err := d.Remove("hello", "2.12-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := d.Read("hello", "2.12-1"); err == nil {
		t.Fatal("expected an error reading a removed package")
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, p := range []pkginfo.PkgInfo{
		{Name: "alpha", Version: "1.0"},
		{Name: "beta", Version: "2.0"},
		{Name: "alpha", Version: "2.0"},
	} {
		if err := d.Write(p.Name, p.Version, p); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	all, err := d.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}

	filtered, err := d.List("alpha-*")
	if err != nil {
		t.Fatalf("List(alpha-*): %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("got %d entries, want 2", len(filtered))
	}
}

func TestRebuildAutocompleteAndSearch(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, p := range []pkginfo.PkgInfo{
		{Name: "alpha", Version: "1.0"},
		{Name: "beta", Version: "2.0"},
		{Name: "gamma", Version: "3.0"},
	} {
		if err := d.Write(p.Name, p.Version, p); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	indexPath := filepath.Join(root, "runepkg_autocomplete.bin")
	if err := d.RebuildAutocomplete(indexPath); err != nil {
		t.Fatalf("RebuildAutocomplete: %v", err)
	}

	idx, err := OpenAutocompleteIndex(indexPath)
	if err != nil {
		t.Fatalf("OpenAutocompleteIndex: %v", err)
	}
	defer idx.Close()

	if idx.Len() != 3 {
		t.Fatalf("got %d entries, want 3", idx.Len())
	}

	matches, err := idx.Search("alpha")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0] != "alpha-1.0" {
		t.Errorf("got %v", matches)
	}
}

func TestRebuildAutocompleteIdempotent(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.Write("alpha", "1.0", pkginfo.PkgInfo{Name: "alpha", Version: "1.0"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	indexPath := filepath.Join(root, "runepkg_autocomplete.bin")
	if err := d.RebuildAutocomplete(indexPath); err != nil {
		t.Fatalf("RebuildAutocomplete (1st): %v", err)
	}
	first, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	if err := d.RebuildAutocomplete(indexPath); err != nil {
		t.Fatalf("RebuildAutocomplete (2nd): %v", err)
	}
	second, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("expected idempotent rebuild to produce byte-equal output")
	}
}
