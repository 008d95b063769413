// Package archive reads .deb files: the outer ar(1) container, the
// control.tar.* member's RFC-822-style control stanza, and the
// data.tar.* member's payload, extracted to a scratch directory.
//
// Grounded on the teacher's deb.NewPackage (deb/package.go) for the ar
// and control-tar walk and parseControlFile's continuation-line stanza
// parser (deb/util.go), and on arc-language-upkg's extractDataTar
// (pkg/dpkg/manager.go) for the compression dispatch and per-entry
// directory/symlink/regular-file placement with size verification.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/michkochris/runepkg/internal/rpkgerr"
)

// Stanza is a parsed control-file: the flat key/value set plus the
// original field order, since extra fields (everything pkginfo does not
// model explicitly) must round-trip in a stable order.
type Stanza struct {
	Fields map[string]string
	Order  []string
}

// Get returns the trimmed value for key, or "" if absent.
func (s Stanza) Get(key string) string { return s.Fields[key] }

// ExtractDeb unpacks path's ar container into scratchDir, extracting the
// control.tar.* member to scratchDir/control and the data.tar.* member
// to scratchDir/data, preserving relative paths, permissions, and
// symlinks. Both members are required; their absence is a fatal error
// (spec.md §4.C steps 1-3).
func ExtractDeb(path, scratchDir string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", rpkgerr.ErrNotFound, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a regular file", rpkgerr.ErrInvalidInput, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %v", rpkgerr.ErrIO, path, err)
	}
	defer f.Close()

	controlDir := filepath.Join(scratchDir, "control")
	dataDir := filepath.Join(scratchDir, "data")

	var sawControl, sawData bool
	arR := ar.NewReader(f)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading ar header in %q: %v", rpkgerr.ErrCorrupt, path, err)
		}

		switch {
		case strings.HasPrefix(header.Name, "control.tar"):
			if err := extractTarMember(arR, header.Name, controlDir); err != nil {
				return fmt.Errorf("%w: extracting %s: %v", rpkgerr.ErrExtraction, header.Name, err)
			}
			sawControl = true
		case strings.HasPrefix(header.Name, "data.tar"):
			if err := extractTarMember(arR, header.Name, dataDir); err != nil {
				return fmt.Errorf("%w: extracting %s: %v", rpkgerr.ErrExtraction, header.Name, err)
			}
			sawData = true
		}
	}

	if !sawControl {
		return fmt.Errorf("%w: %q has no control.tar member", rpkgerr.ErrCorrupt, path)
	}
	if !sawData {
		return fmt.Errorf("%w: %q has no data.tar member", rpkgerr.ErrCorrupt, path)
	}
	return nil
}

func decodeTarStream(r io.Reader, memberName string) (*tar.Reader, func() error, error) {
	switch {
	case strings.HasSuffix(memberName, ".gz"):
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", memberName, err)
		}
		return tar.NewReader(gzr), gzr.Close, nil
	case strings.HasSuffix(memberName, ".xz"):
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", memberName, err)
		}
		return tar.NewReader(xzr), func() error { return nil }, nil
	case strings.HasSuffix(memberName, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", memberName, err)
		}
		return tar.NewReader(zr), func() error { zr.Close(); return nil }, nil
	default:
		return tar.NewReader(r), func() error { return nil }, nil
	}
}

// extractTarMember decodes one ar member's tar stream (after stripping
// its compression suffix) and places every entry under dest.
func extractTarMember(r io.Reader, memberName, dest string) error {
	tr, closeFn, err := decodeTarStream(r, memberName)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("%w: creating %q: %v", rpkgerr.ErrIO, dest, err)
	}

	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}
		path := cleanEntryPath(th.Name)
		if path == "" {
			continue
		}
		if strings.Contains(path, "..") {
			return fmt.Errorf("%w: entry %q escapes %q", rpkgerr.ErrInvalidInput, th.Name, dest)
		}
		target := filepath.Join(dest, path)

		switch th.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("%w: creating directory %q: %v", rpkgerr.ErrIO, target, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("%w: creating parent of %q: %v", rpkgerr.ErrIO, target, err)
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("%w: removing existing %q: %v", rpkgerr.ErrIO, target, err)
			}
			if err := os.Symlink(th.Linkname, target); err != nil {
				return fmt.Errorf("%w: creating symlink %q -> %q: %v", rpkgerr.ErrIO, target, th.Linkname, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("%w: creating parent of %q: %v", rpkgerr.ErrIO, target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(th.Mode))
			if err != nil {
				return fmt.Errorf("%w: creating %q: %v", rpkgerr.ErrIO, target, err)
			}
			written, err := io.Copy(out, tr)
			closeErr := out.Close()
			if err != nil {
				return fmt.Errorf("%w: writing %q: %v", rpkgerr.ErrIO, target, err)
			}
			if closeErr != nil {
				return fmt.Errorf("%w: closing %q: %v", rpkgerr.ErrIO, target, closeErr)
			}
			if written != th.Size {
				return fmt.Errorf("%w: %q wanted %d bytes, wrote %d", rpkgerr.ErrCorrupt, target, th.Size, written)
			}
		}
	}
	return nil
}

func cleanEntryPath(name string) string {
	p := strings.TrimPrefix(name, "./")
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}

// LoadControlFile reads and parses controlDir/control.
func LoadControlFile(controlDir string) (Stanza, error) {
	content, err := os.ReadFile(filepath.Join(controlDir, "control"))
	if err != nil {
		if os.IsNotExist(err) {
			return Stanza{}, fmt.Errorf("%w: %q has no control file", rpkgerr.ErrCorrupt, controlDir)
		}
		return Stanza{}, fmt.Errorf("%w: reading control file: %v", rpkgerr.ErrIO, err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return Stanza{}, fmt.Errorf("%w: empty control file", rpkgerr.ErrCorrupt)
	}
	return ParseStanza(string(content)), nil
}

// ParseStanza parses one RFC-822-style control stanza, handling
// field-continuation lines (leading whitespace), adapted from the
// teacher's parseControlFile field-by-field switch into a generic
// key/value/order capture.
func ParseStanza(content string) Stanza {
	s := Stanza{Fields: make(map[string]string)}

	var currentKey string
	var currentValue strings.Builder
	flush := func() {
		if currentKey != "" {
			if _, exists := s.Fields[currentKey]; !exists {
				s.Order = append(s.Order, currentKey)
			}
			s.Fields[currentKey] = strings.TrimSpace(currentValue.String())
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			currentValue.WriteString("\n" + line)
		} else if idx := strings.IndexByte(line, ':'); idx >= 0 {
			flush()
			currentKey = strings.TrimSpace(line[:idx])
			currentValue.Reset()
			currentValue.WriteString(strings.TrimSpace(line[idx+1:]))
		}
	}
	flush()
	return s
}

// WalkDataFiles walks dataDir in lexicographic order and returns the
// dataDir-relative path of each regular file and symlink. Directories
// are not recorded in the result: they are recreated on install as
// needed but are not part of file_list (spec.md §4.C step 5).
func WalkDataFiles(dataDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dataDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
			return nil
		}
		rel, err := filepath.Rel(dataDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking %q: %v", rpkgerr.ErrIO, dataDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Filename is a parsed {name}_{version}_{arch}.deb basename, the strict
// grammar parse chosen over strstr heuristics for filename-driven glob and
// version resolution.
type Filename struct {
	Name    string
	Version string
	Arch    string
}

// ParseFilename parses a .deb basename into its three underscore-delimited
// fields. It does not validate the version against internal/version; call
// version.Parse separately if a parsed Version is needed.
func ParseFilename(basename string) (Filename, error) {
	if !strings.HasSuffix(basename, ".deb") {
		return Filename{}, fmt.Errorf("%w: %q is not a .deb filename", rpkgerr.ErrInvalidInput, basename)
	}
	base := strings.TrimSuffix(basename, ".deb")
	parts := strings.SplitN(base, "_", 3)
	if len(parts) != 3 {
		return Filename{}, fmt.Errorf("%w: %q does not match name_version_arch.deb", rpkgerr.ErrParse, basename)
	}
	for _, p := range parts {
		if p == "" {
			return Filename{}, fmt.Errorf("%w: %q has an empty field", rpkgerr.ErrParse, basename)
		}
	}
	return Filename{Name: parts[0], Version: parts[1], Arch: parts[2]}, nil
}
