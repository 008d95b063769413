// Package query implements the read-only query surface (spec.md §4.I):
// list, status, file-content search, and fuzzy suggestions. Grounded on
// the teacher's Repository.Get and PackagesByUpstream (deb/repository.go),
// which perform the same exact-match-then-scan shape against an
// in-memory package collection.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/michkochris/runepkg/internal/pkginfo"
	"github.com/michkochris/runepkg/internal/rpkgerr"
	"github.com/michkochris/runepkg/internal/runepkgctx"
)

// Surface answers read-only queries against a Context's DB and installed
// index.
type Surface struct {
	ctx *runepkgctx.Context
}

// New returns a Surface bound to ctx.
func New(ctx *runepkgctx.Context) *Surface {
	return &Surface{ctx: ctx}
}

// List enumerates installed "{name}-{version}" directory names,
// optionally filtered to those beginning with prefix, sorted
// lexicographically.
func (s *Surface) List(prefix string) ([]string, error) {
	pattern := ""
	if prefix != "" {
		pattern = prefix + "*"
	}
	return s.ctx.DB.List(pattern)
}

// Status looks up name by exact match first, as a package name in the
// installed index and then as a "{name}-{version}" directory name; on a
// match it returns the full record. Otherwise it returns
// rpkgerr.ErrSuggestionsShown with fuzzy candidates.
func (s *Surface) Status(name string) (pkginfo.PkgInfo, error) {
	if info, ok := s.ctx.Installed.Get(name); ok {
		return info, nil
	}

	entries, err := s.ctx.DB.List("")
	if err != nil {
		return pkginfo.PkgInfo{}, err
	}
	for _, e := range entries {
		if e == name {
			if i := strings.LastIndexByte(e, '-'); i > 0 {
				return s.ctx.DB.Read(e[:i], e[i+1:])
			}
		}
	}
	var suggestions []string
	for _, e := range entries {
		if strings.Contains(e, name) {
			suggestions = append(suggestions, e)
		}
	}
	return pkginfo.PkgInfo{}, fmt.Errorf("%w: %q not found, did you mean: %s",
		rpkgerr.ErrSuggestionsShown, name, strings.Join(suggestions, ", "))
}

// FileMatch is one (package, path) hit from Search.
type FileMatch struct {
	Package string
	Path    string
}

// Search scans every installed package's file list and returns each
// (name, path) pair whose path contains substring. Linear in total file
// count; no index is maintained (spec.md §4.I).
func (s *Surface) Search(substring string) []FileMatch {
	var matches []FileMatch
	for _, info := range s.ctx.Installed.All() {
		for _, path := range info.FileList {
			if strings.Contains(path, substring) {
				matches = append(matches, FileMatch{Package: info.Name, Path: path})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Package != matches[j].Package {
			return matches[i].Package < matches[j].Package
		}
		return matches[i].Path < matches[j].Path
	})
	return matches
}

// Suggestions returns up to max installed directory names containing
// query as a substring, in scan order.
func (s *Surface) Suggestions(query string, max int) ([]string, error) {
	entries, err := s.ctx.DB.List("")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.Contains(e, query) {
			out = append(out, e)
			if len(out) >= max {
				break
			}
		}
	}
	return out, nil
}
