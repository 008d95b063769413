// Package pkginfo implements the in-memory package record and its binary
// on-disk encoding (pkginfo.bin), per spec.md §3 and §4.D. The field
// ordering of Encode/Decode mirrors the teacher's Package.WriteTo
// (deb/package.go), which always serializes metadata in the same fixed
// field order before appending the file list.
package pkginfo

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/michkochris/runepkg/internal/rpkgerr"
)

// magic identifies a valid pkginfo.bin / runepkg_autocomplete.bin file.
var magic = [4]byte{'R', 'U', 'N', 'E'}

const (
	nameFieldLen    = 64
	versionFieldLen = 64
	headerLen       = 4 + nameFieldLen + versionFieldLen + 4 // magic+name+version+data_offset

	// maxFileCount bounds file_count allocations against a corrupt or
	// maliciously crafted pkginfo.bin, per spec.md §4.D.
	maxFileCount = 1_000_000
	// maxStringLen bounds a single length-prefixed string, generous
	// enough for any real control-field value.
	maxStringLen = 1 << 20
)

// PkgInfo is the canonical record of one installed package: identity,
// free-form metadata, and its ordered file list.
type PkgInfo struct {
	Name    string
	Version string

	Architecture   string
	Maintainer     string
	Description    string
	Depends        string
	InstalledSize  string
	Section        string
	Priority       string
	Homepage       string
	SourceFilename string

	FileList []string
}

// DirName returns the persistent directory name "{name}-{version}".
func (p PkgInfo) DirName() string {
	return p.Name + "-" + p.Version
}

// metadataFields returns the body's fixed-order string fields, matching
// the layout in spec.md §3.
func (p *PkgInfo) metadataFields() []*string {
	return []*string{
		&p.Name, &p.Version, &p.Architecture, &p.Maintainer, &p.Description,
		&p.Depends, &p.InstalledSize, &p.Section, &p.Priority, &p.Homepage,
		&p.SourceFilename,
	}
}

// Encode serializes p into the pkginfo.bin wire format.
func (p PkgInfo) Encode() ([]byte, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: package name is empty", rpkgerr.ErrInvalidInput)
	}

	var body bytes.Buffer
	for _, f := range p.metadataFields() {
		if err := writeLenPrefixed(&body, *f); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&body, binary.LittleEndian, uint32(len(p.FileList))); err != nil {
		return nil, fmt.Errorf("%w: %v", rpkgerr.ErrIO, err)
	}
	for _, path := range p.FileList {
		if err := writeLenPrefixed(&body, path); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	out.Write(magic[:])
	out.Write(fixedField(p.Name, nameFieldLen))
	out.Write(fixedField(p.Version, versionFieldLen))
	if err := binary.Write(&out, binary.LittleEndian, uint32(headerLen)); err != nil {
		return nil, fmt.Errorf("%w: %v", rpkgerr.ErrIO, err)
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// Decode parses the pkginfo.bin wire format, returning a rpkgerr.ErrCorrupt
// error on any magic mismatch, truncated field, or length inconsistency.
func Decode(data []byte) (PkgInfo, error) {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return PkgInfo{}, fmt.Errorf("%w: reading magic: %v", rpkgerr.ErrCorrupt, err)
	}
	if gotMagic != magic {
		return PkgInfo{}, fmt.Errorf("%w: bad magic %q", rpkgerr.ErrCorrupt, gotMagic[:])
	}

	if _, err := io.CopyN(io.Discard, r, nameFieldLen+versionFieldLen); err != nil {
		return PkgInfo{}, fmt.Errorf("%w: truncated header: %v", rpkgerr.ErrCorrupt, err)
	}
	var dataOffset uint32
	if err := binary.Read(r, binary.LittleEndian, &dataOffset); err != nil {
		return PkgInfo{}, fmt.Errorf("%w: reading data offset: %v", rpkgerr.ErrCorrupt, err)
	}
	if int(dataOffset) != headerLen {
		return PkgInfo{}, fmt.Errorf("%w: unexpected data offset %d", rpkgerr.ErrCorrupt, dataOffset)
	}

	var p PkgInfo
	for _, f := range p.metadataFields() {
		s, err := readLenPrefixed(r)
		if err != nil {
			return PkgInfo{}, err
		}
		*f = s
	}
	if p.Name == "" {
		return PkgInfo{}, fmt.Errorf("%w: empty name field", rpkgerr.ErrCorrupt)
	}

	var fileCount uint32
	if err := binary.Read(r, binary.LittleEndian, &fileCount); err != nil {
		return PkgInfo{}, fmt.Errorf("%w: reading file_count: %v", rpkgerr.ErrCorrupt, err)
	}
	if fileCount > maxFileCount {
		return PkgInfo{}, fmt.Errorf("%w: file_count %d exceeds limit", rpkgerr.ErrCorrupt, fileCount)
	}
	p.FileList = make([]string, 0, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		s, err := readLenPrefixed(r)
		if err != nil {
			return PkgInfo{}, err
		}
		if err := validateFilePath(s); err != nil {
			return PkgInfo{}, err
		}
		p.FileList = append(p.FileList, s)
	}

	return p, nil
}

func validateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty file path", rpkgerr.ErrCorrupt)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: file path %q begins with /", rpkgerr.ErrCorrupt, path)
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("%w: file path %q contains ..", rpkgerr.ErrCorrupt, path)
		}
	}
	return nil
}

func fixedField(s string, width int) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}

func writeLenPrefixed(w io.Writer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("%w: string field exceeds %d bytes", rpkgerr.ErrInvalidInput, maxStringLen)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("%w: %v", rpkgerr.ErrIO, err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("%w: %v", rpkgerr.ErrIO, err)
	}
	return nil
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("%w: reading string length: %v", rpkgerr.ErrCorrupt, err)
	}
	if n > maxStringLen {
		return "", fmt.Errorf("%w: string length %d exceeds limit", rpkgerr.ErrCorrupt, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: string of declared length %d runs past end of file: %v", rpkgerr.ErrCorrupt, n, err)
	}
	return string(buf), nil
}

// WriteFile writes p's encoding to path atomically: the data lands in a
// temp file in the same directory, then an os.Rename makes it visible, so
// an interrupted write can never be mistaken for a valid record.
func WriteFile(path string, p PkgInfo) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dirOf(path), ".pkginfo-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", rpkgerr.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
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
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming into place %q: %v", rpkgerr.ErrIO, path, err)
	}
	return nil
}

// ReadFile reads and decodes the pkginfo.bin at path.
func ReadFile(path string) (PkgInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PkgInfo{}, fmt.Errorf("%w: %q", rpkgerr.ErrNotFound, path)
		}
		return PkgInfo{}, fmt.Errorf("%w: reading %q: %v", rpkgerr.ErrIO, path, err)
	}
	return Decode(data)
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}
