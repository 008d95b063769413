package pkginfo

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleInfo() PkgInfo {
	return PkgInfo{
		Name:          "hello",
		Version:       "2.12-1",
		Architecture:  "amd64",
		Maintainer:    "Jane Doe <jane@example.com>",
		Description:   "a friendly greeting program",
		Depends:       "libc6 (>= 2.34)",
		InstalledSize: "42",
		FileList:      []string{"usr/bin/hello", "usr/share/doc/hello/copyright"},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := sampleInfo()
	data, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("round-trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestEncodeDecodeEmptyFileList(t *testing.T) {
	info := PkgInfo{Name: "empty", Version: "1.0"}
	data, err := info.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.FileList) != 0 {
		t.Errorf("expected empty file list, got %v", got.FileList)
	}
}

func TestEncodeRejectsEmptyName(t *testing.T) {
	if _, err := (PkgInfo{Version: "1.0"}).Encode(); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := []byte("NOPE0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000")
	if _, err := Decode(data); err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	info := sampleInfo()
	data, err := info.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(data[:len(data)-5]); err == nil {
		t.Fatal("expected an error decoding a truncated file")
	}
}

func TestDecodeRejectsAbsoluteFilePath(t *testing.T) {
	info := sampleInfo()
	info.FileList = []string{"/etc/passwd"}
	data, err := info.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(data); err == nil {
		t.Fatal("expected an error for an absolute file path")
	}
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkginfo.bin")
	want := sampleInfo()

	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("round-trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected WriteFile to leave exactly the final file, found %d entries", len(entries))
	}
}

func TestReadFileNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadFile(filepath.Join(dir, "missing.bin")); err == nil {
		t.Fatal("expected a not-found error")
	}
}
