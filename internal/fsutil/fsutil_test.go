package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestJoinRejectsAbsolute(t *testing.T) {
	if _, err := Join("/a", "/etc/passwd"); err == nil {
		t.Fatal("expected error for absolute rel")
	}
}

func TestJoinRejectsDotDot(t *testing.T) {
	if _, err := Join("/a", "../b"); err == nil {
		t.Fatal("expected error for .. segment")
	}
}

func TestJoinRejectsEmbeddedDotDot(t *testing.T) {
	if _, err := Join("/a", "b/../../c"); err == nil {
		t.Fatal("expected error for embedded .. segment")
	}
}

func TestJoinOK(t *testing.T) {
	got, err := Join("/a", "b/c")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != "/a/b/c" {
		t.Errorf("got %q", got)
	}
}

func TestMkdirsCreatesAncestors(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a", "b", "c")
	if err := Mkdirs(path, 0755); err != nil {
		t.Fatalf("Mkdirs: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %q", path)
	}
}

func TestMkdirsExistingDirOK(t *testing.T) {
	root := t.TempDir()
	if err := Mkdirs(root, 0755); err != nil {
		t.Fatalf("Mkdirs on existing dir: %v", err)
	}
}

func TestMkdirsCollisionWithFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "collide")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := Mkdirs(path, 0755); err == nil {
		t.Fatal("expected error colliding with a regular file")
	}
}

func TestCopyFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.WriteFile(src, []byte("payload"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q", got)
	}
}

func TestCopySymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := filepath.Join(root, "link")
	if err := os.Symlink("target", src); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	dst := filepath.Join(root, "copied-link")
	if err := CopySymlink(src, dst); err != nil {
		t.Fatalf("CopySymlink: %v", err)
	}
	got, err := os.Readlink(dst)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if got != "target" {
		t.Errorf("got link target %q", got)
	}
}

func TestRmdirs(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "sub")
	if err := os.MkdirAll(filepath.Join(path, "nested"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := Rmdirs(path); err != nil {
		t.Fatalf("Rmdirs: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %q to be gone", path)
	}
}

func TestDirSize(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a"), []byte("12345"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "b"), []byte("12"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	size, err := DirSize(root)
	if err != nil {
		t.Fatalf("DirSize: %v", err)
	}
	if size != 7 {
		t.Errorf("got %d, want 7", size)
	}
}
