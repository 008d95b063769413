// Package depends parses Debian-style Depends/Pre-Depends/Conflicts/etc
// header values into structured atoms (spec.md §4.C). It generalizes the
// comma-splitting helper the teacher uses for these same headers
// (deb/util.go splitList) to also pull the package name and version
// constraint out of each comma-separated element.
package depends

import (
	"fmt"
	"strings"

	"github.com/michkochris/runepkg/internal/rpkgerr"
	"github.com/michkochris/runepkg/internal/version"
)

// Alternative is one "name (op version)" term inside an Atom's '|' group.
type Alternative struct {
	Name       string
	Constraint *version.Constraint // nil when the atom carries no version constraint
}

// Atom is one comma-separated element of a Depends-style header: a group
// of one or more alternatives joined by '|'. Per spec.md's explicit
// deferral (OQ2), alternatives are preserved as parsed structure but the
// '|' choice itself is never resolved here — callers that need a single
// candidate decide that policy themselves.
type Atom struct {
	Alternatives []Alternative
	Raw          string
}

// Split breaks a comma-separated header value into trimmed elements, nil
// for an empty string. Equivalent to the teacher's splitList, kept as a
// building block for Parse.
func Split(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// Parse splits a header value into Atoms, parsing each "name (op version)"
// term and any '|' alternatives.
func Parse(s string) ([]Atom, error) {
	elems := Split(s)
	atoms := make([]Atom, 0, len(elems))
	for _, elem := range elems {
		atom, err := parseAtom(elem)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	return atoms, nil
}

func parseAtom(elem string) (Atom, error) {
	var alts []Alternative
	for _, part := range strings.Split(elem, "|") {
		alt, err := parseAlternative(strings.TrimSpace(part))
		if err != nil {
			return Atom{}, fmt.Errorf("parsing %q: %w", elem, err)
		}
		alts = append(alts, alt)
	}
	if len(alts) == 0 {
		return Atom{}, fmt.Errorf("%w: empty dependency atom", rpkgerr.ErrParse)
	}
	return Atom{Alternatives: alts, Raw: elem}, nil
}

func parseAlternative(part string) (Alternative, error) {
	open := strings.IndexByte(part, '(')
	if open < 0 {
		name := strings.TrimSpace(part)
		if name == "" {
			return Alternative{}, fmt.Errorf("%w: empty package name", rpkgerr.ErrParse)
		}
		return Alternative{Name: name}, nil
	}

	close := strings.IndexByte(part, ')')
	if close < open {
		return Alternative{}, fmt.Errorf("%w: unbalanced parentheses in %q", rpkgerr.ErrParse, part)
	}

	name := strings.TrimSpace(part[:open])
	if name == "" {
		return Alternative{}, fmt.Errorf("%w: empty package name in %q", rpkgerr.ErrParse, part)
	}

	inner := strings.TrimSpace(part[open+1 : close])
	op, ver, err := splitOpVersion(inner)
	if err != nil {
		return Alternative{}, fmt.Errorf("parsing constraint %q: %w", inner, err)
	}
	c, err := version.ParseConstraint(op, ver)
	if err != nil {
		return Alternative{}, err
	}
	return Alternative{Name: name, Constraint: &c}, nil
}

// splitOpVersion separates a constraint's leading operator run from its
// version literal, e.g. ">= 1.2.3" -> (">=", "1.2.3").
func splitOpVersion(s string) (op, ver string, err error) {
	i := 0
	for i < len(s) && isOpChar(s[i]) {
		i++
	}
	if i == 0 {
		return "", "", fmt.Errorf("%w: missing comparison operator", rpkgerr.ErrParse)
	}
	op = s[:i]
	ver = strings.TrimSpace(s[i:])
	if ver == "" {
		return "", "", fmt.Errorf("%w: missing version after operator %q", rpkgerr.ErrParse, op)
	}
	return op, ver, nil
}

func isOpChar(b byte) bool {
	switch b {
	case '<', '>', '=', '!':
		return true
	default:
		return false
	}
}

// Names returns the first alternative's name from each atom, the
// resolution policy used wherever a single candidate is required (e.g.
// install-time constraint checking against the in-memory index).
func Names(atoms []Atom) []string {
	names := make([]string, 0, len(atoms))
	for _, a := range atoms {
		if len(a.Alternatives) > 0 {
			names = append(names, a.Alternatives[0].Name)
		}
	}
	return names
}
