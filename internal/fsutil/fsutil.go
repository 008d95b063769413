// Package fsutil provides the path-join and filesystem primitives every
// other runepkg component builds on: safe path joining, recursive
// mkdir/rmdir, file and symlink copy, and recursive directory sizing.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/michkochris/runepkg/internal/rpkgerr"
)

// maxPathLen mirrors the common Linux PATH_MAX; join rejects paths that
// would exceed it.
const maxPathLen = 4096

// Join combines dir and rel into a path guaranteed to stay under dir. It
// fails if rel is absolute, contains a ".." segment, or the combined path
// would exceed the platform path length limit.
func Join(dir, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty relative path", rpkgerr.ErrInvalidInput)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q is absolute", rpkgerr.ErrInvalidInput, rel)
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q escapes its root via ..", rpkgerr.ErrInvalidInput, rel)
		}
	}

	joined := filepath.Join(dir, rel)
	if len(joined) > maxPathLen {
		return "", fmt.Errorf("%w: joined path exceeds %d bytes", rpkgerr.ErrInvalidInput, maxPathLen)
	}

	// Defense in depth: even after rejecting literal ".." segments, resolve
	// lexically and confirm the result is still rooted at dir.
	cleanDir := filepath.Clean(dir)
	rel2, err := filepath.Rel(cleanDir, filepath.Clean(joined))
	if err != nil || rel2 == ".." || strings.HasPrefix(rel2, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %q", rpkgerr.ErrInvalidInput, rel, dir)
	}
	return joined, nil
}

// Mkdirs creates path and all missing ancestors. An already-existing
// directory at path is success; a non-directory collision is an error.
func Mkdirs(path string, mode os.FileMode) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %q exists and is not a directory", rpkgerr.ErrIO, path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("%w: stat %q: %v", rpkgerr.ErrIO, path, err)
	}
	if err := os.MkdirAll(path, mode); err != nil {
		return fmt.Errorf("%w: mkdir %q: %v", rpkgerr.ErrIO, path, err)
	}
	return nil
}

// Rmdirs recursively unlinks path. It is best-effort: it continues past
// per-entry failures but returns an error if any entry failed.
func Rmdirs(path string) error {
	var failures []string

	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", p, err))
			return nil
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: walking %q: %v", rpkgerr.ErrIO, path, err)
	}

	if err := os.RemoveAll(path); err != nil {
		failures = append(failures, fmt.Sprintf("%s: %v", path, err))
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: %s", rpkgerr.ErrIO, strings.Join(failures, "; "))
	}
	return nil
}

// CopyFile buffers a byte-for-byte copy of src to dst. dst's permissions
// are set to the low 9 bits of src's mode.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %v", rpkgerr.ErrIO, src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %q: %v", rpkgerr.ErrIO, src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()&0777)
	if err != nil {
		return fmt.Errorf("%w: creating %q: %v", rpkgerr.ErrIO, dst, err)
	}
	defer out.Close()

	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: chmod %q: %v", rpkgerr.ErrIO, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: copying %q to %q: %v", rpkgerr.ErrIO, src, dst, err)
	}
	return nil
}

// CopySymlink reads the link target at src and recreates it at dst,
// replacing any existing entry there.
func CopySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("%w: reading link %q: %v", rpkgerr.ErrIO, src, err)
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing existing %q: %v", rpkgerr.ErrIO, dst, err)
	}
	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("%w: creating symlink %q -> %q: %v", rpkgerr.ErrIO, dst, target, err)
	}
	return nil
}

// DirSize recursively sums the sizes of regular files under path.
// Symlinks are counted by their own size, not the size of their target.
func DirSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() || info.Mode()&os.ModeSymlink != 0 {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: walking %q: %v", rpkgerr.ErrIO, path, err)
	}
	return total, nil
}
