// Package db implements the persistent package database: one directory
// per installed package under a DB root, each holding a single
// pkginfo.bin, plus the sorted autocomplete index used for shell
// completion. Grounded on the teacher's NewRepositoryFromDir
// (deb/repository.go), which enumerates a directory's entries and
// reconstructs in-memory records from what it finds on disk — the same
// reconciliation-from-disk shape spec.md §3 requires at startup.
package db

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/michkochris/runepkg/internal/fsutil"
	"github.com/michkochris/runepkg/internal/pkginfo"
	"github.com/michkochris/runepkg/internal/rpkgerr"
)

const pkgInfoFilename = "pkginfo.bin"

// autocompleteMagic and autocompleteVersion identify runepkg_autocomplete.bin.
var autocompleteMagic = [4]byte{'R', 'U', 'N', 'E'}

const autocompleteVersion = uint32(1)

// DB is a handle on one DB root directory.
type DB struct {
	root string
}

// Open returns a handle on root, creating it if absent.
func Open(root string) (*DB, error) {
	if err := fsutil.Mkdirs(root, 0755); err != nil {
		return nil, err
	}
	return &DB{root: root}, nil
}

// PackagePath returns "{db_root}/{name}-{version}".
func (db *DB) PackagePath(name, version string) string {
	return filepath.Join(db.root, name+"-"+version)
}

// CreateDir creates the per-package directory for name/version.
func (db *DB) CreateDir(name, version string) error {
	return fsutil.Mkdirs(db.PackagePath(name, version), 0755)
}

// Write persists info's pkginfo.bin under its own directory, creating the
// directory first if needed.
func (db *DB) Write(name, version string, info pkginfo.PkgInfo) error {
	dir := db.PackagePath(name, version)
	if err := fsutil.Mkdirs(dir, 0755); err != nil {
		return err
	}
	return pkginfo.WriteFile(filepath.Join(dir, pkgInfoFilename), info)
}

// Read loads the pkginfo.bin for name/version.
func (db *DB) Read(name, version string) (pkginfo.PkgInfo, error) {
	p := filepath.Join(db.PackagePath(name, version), pkgInfoFilename)
	info, err := pkginfo.ReadFile(p)
	if err != nil {
		return pkginfo.PkgInfo{}, err
	}
	return info, nil
}

// Remove deletes the per-package directory for name/version.
func (db *DB) Remove(name, version string) error {
	return fsutil.Rmdirs(db.PackagePath(name, version))
}

// List enumerates "{name}-{version}" directory names under the DB root
// that contain a pkginfo.bin file (its presence is checked; its contents
// are not read or validated here), optionally filtered to
// those matching a glob pattern (e.g. "name-*" or "name*").
func (db *DB) List(pattern string) ([]string, error) {
	entries, err := os.ReadDir(db.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading %q: %v", rpkgerr.ErrIO, db.root, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !db.hasPkgInfo(name) {
			continue
		}
		if pattern != "" {
			ok, err := path.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("%w: bad pattern %q: %v", rpkgerr.ErrInvalidInput, pattern, err)
			}
			if !ok {
				continue
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (db *DB) hasPkgInfo(dirName string) bool {
	info, err := os.Stat(filepath.Join(db.root, dirName, pkgInfoFilename))
	return err == nil && !info.IsDir()
}

// RebuildAutocomplete regenerates runepkg_autocomplete.bin from the
// current DB root contents: sorted "{name}-{version}" entries, written to
// a temp file and renamed into place.
func (db *DB) RebuildAutocomplete(indexPath string) error {
	entries, err := db.List("")
	if err != nil {
		return err
	}
	sort.Strings(entries)

	var blob bytes.Buffer
	offsets := make([]uint32, 0, len(entries))
	for _, e := range entries {
		offsets = append(offsets, uint32(blob.Len()))
		blob.WriteString(e)
		blob.WriteByte(0)
	}

	var out bytes.Buffer
	out.Write(autocompleteMagic[:])
	binary.Write(&out, binary.LittleEndian, autocompleteVersion)
	binary.Write(&out, binary.LittleEndian, uint32(len(entries)))
	binary.Write(&out, binary.LittleEndian, uint32(blob.Len()))
	for _, off := range offsets {
		binary.Write(&out, binary.LittleEndian, off)
	}
	out.Write(blob.Bytes())

	tmp, err := os.CreateTemp(filepath.Dir(indexPath), ".autocomplete-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", rpkgerr.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(out.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %q: %v", rpkgerr.ErrIO, tmpPath, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: flushing %q: %v", rpkgerr.ErrIO, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %q: %v", rpkgerr.ErrIO, tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("%w: chmod %q: %v", rpkgerr.ErrIO, tmpPath, err)
	}
	if err := os.Rename(tmpPath, indexPath); err != nil {
		return fmt.Errorf("%w: renaming into place %q: %v", rpkgerr.ErrIO, indexPath, err)
	}
	return nil
}

// AutocompleteIndex is a read-only, memory-mapped view of
// runepkg_autocomplete.bin, used for binary search and prefix scan by
// shell completion.
type AutocompleteIndex struct {
	r       *mmap.ReaderAt
	entries int
	offsets []uint32
	blobOff int64
	blobLen int
}

// OpenAutocompleteIndex memory-maps indexPath and parses its header and
// offset table.
func OpenAutocompleteIndex(indexPath string) (*AutocompleteIndex, error) {
	r, err := mmap.Open(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", rpkgerr.ErrNotFound, indexPath)
		}
		return nil, fmt.Errorf("%w: opening %q: %v", rpkgerr.ErrIO, indexPath, err)
	}

	header := make([]byte, 16)
	if _, err := r.ReadAt(header, 0); err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: reading header: %v", rpkgerr.ErrCorrupt, err)
	}
	if !bytes.Equal(header[:4], autocompleteMagic[:]) {
		r.Close()
		return nil, fmt.Errorf("%w: bad magic in %q", rpkgerr.ErrCorrupt, indexPath)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != autocompleteVersion {
		r.Close()
		return nil, fmt.Errorf("%w: unsupported autocomplete version %d", rpkgerr.ErrCorrupt, version)
	}
	entryCount := binary.LittleEndian.Uint32(header[8:12])
	stringsSize := binary.LittleEndian.Uint32(header[12:16])

	offsetTable := make([]byte, int(entryCount)*4)
	if _, err := r.ReadAt(offsetTable, 16); err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: reading offset table: %v", rpkgerr.ErrCorrupt, err)
	}
	offsets := make([]uint32, entryCount)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(offsetTable[i*4 : i*4+4])
	}

	return &AutocompleteIndex{
		r:       r,
		entries: int(entryCount),
		offsets: offsets,
		blobOff: 16 + int64(entryCount)*4,
		blobLen: int(stringsSize),
	}, nil
}

// Close unmaps the index.
func (a *AutocompleteIndex) Close() error { return a.r.Close() }

// Len returns the number of entries.
func (a *AutocompleteIndex) Len() int { return a.entries }

// At returns the i-th sorted entry string.
func (a *AutocompleteIndex) At(i int) (string, error) {
	if i < 0 || i >= a.entries {
		return "", fmt.Errorf("%w: index %d out of range", rpkgerr.ErrInvalidInput, i)
	}
	start := a.blobOff + int64(a.offsets[i])
	// Strings are NUL-terminated; read forward until the terminator.
	const chunk = 256
	var sb strings.Builder
	buf := make([]byte, chunk)
	for {
		n, err := a.r.ReadAt(buf, start+int64(sb.Len()))
		if n == 0 && err != nil {
			return "", fmt.Errorf("%w: reading entry %d: %v", rpkgerr.ErrCorrupt, i, err)
		}
		if idx := bytes.IndexByte(buf[:n], 0); idx >= 0 {
			sb.Write(buf[:idx])
			return sb.String(), nil
		}
		sb.Write(buf[:n])
		if n < chunk {
			return "", fmt.Errorf("%w: entry %d missing NUL terminator", rpkgerr.ErrCorrupt, i)
		}
	}
}

// Search binary-searches for the first entry not less than prefix, then
// returns the sorted range of entries sharing prefix via a linear scan
// anchored at
// the binary-search insertion point (entries are already sorted, so the
// matching range is contiguous).
func (a *AutocompleteIndex) Search(prefix string) ([]string, error) {
	lo := sort.Search(a.entries, func(i int) bool {
		s, err := a.At(i)
		if err != nil {
			return true
		}
		return s >= prefix
	})

	var matches []string
	for i := lo; i < a.entries; i++ {
		s, err := a.At(i)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(s, prefix) {
			break
		}
		matches = append(matches, s)
	}
	return matches, nil
}
