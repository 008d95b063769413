// Package remove implements the remove engine (spec.md §4.H): bare-name
// fuzzy resolution against the DB root, interactive confirmation in
// verbose mode, file unlinking, and index refresh. Grounded on the
// teacher's unimplemented runPurge stub (cmd/deb-pm/main.go), completed
// here into a real procedure, and on apt.go's bufio.Scanner usage
// generalized from line-scanning control text to reading a stdin
// confirmation line.
package remove

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/michkochris/runepkg/internal/rpkgerr"
	"github.com/michkochris/runepkg/internal/runepkgctx"
)

// Remover orchestrates remove invocations against a shared Context.
type Remover struct {
	ctx    *runepkgctx.Context
	stdin  *bufio.Scanner
	prompt func(string) bool
}

// New returns a Remover bound to ctx, prompting on os.Stdin for
// interactive confirmations.
func New(ctx *runepkgctx.Context) *Remover {
	r := &Remover{ctx: ctx, stdin: bufio.NewScanner(os.Stdin)}
	r.prompt = r.confirmStdin
	return r
}

// Remove accepts either "{name}-{version}" or a bare {name} and removes
// the matching package. A bare name resolving to zero or multiple
// candidates returns rpkgerr.ErrSuggestionsShown with the candidate list
// rather than attempting removal.
func (r *Remover) Remove(spec string) error {
	dirName, err := r.resolveSpec(spec)
	if err != nil {
		return err
	}

	name, ver, ok := splitDirName(dirName)
	if !ok {
		return fmt.Errorf("%w: %q is not a valid {name}-{version} directory", rpkgerr.ErrInvalidInput, dirName)
	}

	info, err := r.ctx.DB.Read(name, ver)
	if err != nil {
		return err
	}
	// The last-hyphen split can fall inside a version carrying a revision;
	// the record holds the real name and version.
	name, ver = info.Name, info.Version

	if r.ctx.Verbose {
		if !r.prompt(fmt.Sprintf("Remove %s %s? [y/N] ", name, ver)) {
			return fmt.Errorf("%w: remove of %s %s declined", rpkgerr.ErrCancelled, name, ver)
		}
	}

	for _, rel := range info.FileList {
		target := filepath.Join(r.ctx.Config.InstallDir, rel)
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			r.ctx.Log.WithError(err).WithField("file", target).Warn("failed to unlink file during remove")
		}
	}

	if err := r.ctx.DB.Remove(name, ver); err != nil {
		return err
	}
	r.ctx.Installed.Delete(name)

	if err := r.ctx.DB.RebuildAutocomplete(r.ctx.AutocompletePath()); err != nil {
		return err
	}
	r.ctx.Log.Infof("removed %s %s", name, ver)
	return nil
}

// resolveSpec implements the bare-name fuzzy-match rules of spec.md
// §4.H: an exact "{name}-{version}" directory is used directly; a bare
// name is matched against every installed directory name it prefixes,
// so overlapping names like "libssl" and "libssl3" collide into an
// ambiguous match rather than one silently shadowing the other.
func (r *Remover) resolveSpec(spec string) (string, error) {
	entries, err := r.ctx.DB.List("")
	if err != nil {
		return "", err
	}
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e] = struct{}{}
	}

	if _, ok := present[spec]; ok {
		return spec, nil
	}

	var matches []string
	for _, e := range entries {
		if strings.HasPrefix(e, spec) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		var suggestions []string
		for _, e := range entries {
			if strings.Contains(e, spec) {
				suggestions = append(suggestions, e)
			}
		}
		return "", fmt.Errorf("%w: %q is not installed, did you mean: %s",
			rpkgerr.ErrSuggestionsShown, spec, strings.Join(suggestions, ", "))
	default:
		return "", fmt.Errorf("%w: %q is ambiguous, did you mean: %s",
			rpkgerr.ErrSuggestionsShown, spec, strings.Join(matches, ", "))
	}
}

func (r *Remover) confirmStdin(question string) bool {
	fmt.Fprint(os.Stdout, question)
	if !r.stdin.Scan() {
		return false
	}
	answer := strings.TrimSpace(r.stdin.Text())
	return answer == "y" || answer == "Y"
}

func splitDirName(dirName string) (name, ver string, ok bool) {
	for i := len(dirName) - 1; i >= 0; i-- {
		if dirName[i] == '-' {
			return dirName[:i], dirName[i+1:], true
		}
	}
	return "", "", false
}
