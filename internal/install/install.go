// Package install implements the install engine (spec.md §4.G): glob
// resolution, the fast path, cycle and duplicate/upgrade handling,
// recursive dependency resolution, and parallel payload placement.
// Grounded on the teacher's overall CLI flow (cmd/deb-pm/main.go) for
// the step ordering and messaging register, and on arc-language-upkg's
// installRecursive (pkg/dpkg/manager.go) for the visited-set recursive
// dependency install and cycle short-circuit.
package install

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/michkochris/runepkg/internal/archive"
	"github.com/michkochris/runepkg/internal/depends"
	"github.com/michkochris/runepkg/internal/fsutil"
	"github.com/michkochris/runepkg/internal/pkginfo"
	"github.com/michkochris/runepkg/internal/rpkgerr"
	"github.com/michkochris/runepkg/internal/runepkgctx"
	"github.com/michkochris/runepkg/internal/version"
)

// maxWorkers bounds the payload-placement pool regardless of CPU count
// or load, per spec.md §5.
const maxWorkers = 32

// Installer orchestrates one or more install invocations against a
// shared Context.
type Installer struct {
	ctx *runepkgctx.Context
}

// New returns an Installer bound to ctx.
func New(ctx *runepkgctx.Context) *Installer {
	return &Installer{ctx: ctx}
}

// Install resolves input (a direct .deb path, a glob prefix, or a bare
// name) to a single .deb file and installs it, recursively installing
// any sibling dependencies it requires.
func (in *Installer) Install(input string) error {
	path, err := in.resolveInput(input)
	if err != nil {
		return err
	}
	attempted := make(map[string]struct{})
	return in.installOne(path, attempted)
}

// resolveInput implements spec.md §4.G step 1: direct filename, else
// glob in the working directory, else glob under a debs/ subdirectory;
// multiple matches are resolved by picking the highest Debian version.
func (in *Installer) resolveInput(input string) (string, error) {
	if strings.HasSuffix(input, ".deb") {
		if info, err := os.Stat(input); err == nil && info.Mode().IsRegular() {
			return input, nil
		}
	}

	pattern := input
	if !strings.HasSuffix(pattern, "*.deb") {
		pattern = pattern + "*.deb"
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("%w: bad glob %q: %v", rpkgerr.ErrInvalidInput, pattern, err)
	}
	if len(matches) == 0 {
		matches, err = filepath.Glob(filepath.Join("debs", pattern))
		if err != nil {
			return "", fmt.Errorf("%w: bad glob %q: %v", rpkgerr.ErrInvalidInput, pattern, err)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no .deb matching %q", rpkgerr.ErrNotFound, input)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return highestVersion(matches)
}

func highestVersion(paths []string) (string, error) {
	type candidate struct {
		path string
		ver  version.Version
	}
	cands := make([]candidate, 0, len(paths))
	for _, p := range paths {
		fn, err := archive.ParseFilename(filepath.Base(p))
		if err != nil {
			continue
		}
		v, err := version.Parse(fn.Version)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{path: p, ver: v})
	}
	if len(cands) == 0 {
		return "", fmt.Errorf("%w: none of %d matches decompose as name_version_arch.deb", rpkgerr.ErrParse, len(paths))
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].ver.Compare(cands[j].ver) > 0 })
	return cands[0].path, nil
}

// installOne implements steps 2-11 of spec.md §4.G for a single resolved
// .deb path. attempted is shared across the whole top-level invocation
// to suppress duplicate recursive dependency attempts.
func (in *Installer) installOne(debPath string, attempted map[string]struct{}) error {
	start := time.Now()
	log := in.ctx.Log.WithField("deb", debPath)

	// Step 2: fast path using filename decomposition alone.
	if fn, err := archive.ParseFilename(filepath.Base(debPath)); err == nil {
		if existing, ok := in.ctx.Installed.Get(fn.Name); ok && existing.Version == fn.Version && !in.ctx.Force {
			log.Infof("%s %s already installed, skipping", fn.Name, fn.Version)
			return nil
		}
	}

	// Step 3: extraction.
	scratchDir, err := os.MkdirTemp(in.ctx.Config.ControlDir, "pkg-*")
	if err != nil {
		return fmt.Errorf("%w: creating scratch dir: %v", rpkgerr.ErrIO, err)
	}
	defer os.RemoveAll(scratchDir)

	if err := archive.ExtractDeb(debPath, scratchDir); err != nil {
		return err
	}
	controlDir := filepath.Join(scratchDir, "control")
	dataDir := filepath.Join(scratchDir, "data")

	stanza, err := archive.LoadControlFile(controlDir)
	if err != nil {
		return err
	}
	name, ver, arch := stanza.Get("Package"), stanza.Get("Version"), stanza.Get("Architecture")
	if name == "" || ver == "" || arch == "" {
		return fmt.Errorf("%w: control stanza missing required Package/Version/Architecture", rpkgerr.ErrParse)
	}

	fileList, err := archive.WalkDataFiles(dataDir)
	if err != nil {
		return err
	}

	info := pkginfo.PkgInfo{
		Name:           name,
		Version:        ver,
		Architecture:   arch,
		Maintainer:     stanza.Get("Maintainer"),
		Description:    stanza.Get("Description"),
		Depends:        stanza.Get("Depends"),
		InstalledSize:  stanza.Get("Installed-Size"),
		Section:        stanza.Get("Section"),
		Priority:       stanza.Get("Priority"),
		Homepage:       stanza.Get("Homepage"),
		SourceFilename: filepath.Base(debPath),
		FileList:       fileList,
	}

	// Step 4: cycle check.
	if !in.ctx.Installing.Enter(name) {
		return nil
	}
	defer in.ctx.Installing.Leave(name)

	// Step 5: duplicate / upgrade policy.
	existing, installedOk := in.ctx.Installed.Get(name)
	if installedOk {
		switch {
		case existing.Version == ver && !in.ctx.Force:
			log.Infof("%s %s already installed, skipping", name, ver)
			return nil
		case existing.Version == ver && in.ctx.Force:
			if err := in.ctx.DB.Remove(name, existing.Version); err != nil {
				return err
			}
		case existing.Version != ver && in.ctx.Force:
			log.Infof("upgrading %s %s -> %s", name, existing.Version, ver)
			if err := in.ctx.DB.Remove(name, existing.Version); err != nil {
				return err
			}
		default: // different version, no force
			return fmt.Errorf("%w: %s %s already installed (have %s); use --force to upgrade",
				rpkgerr.ErrAlreadyInstalled, name, ver, existing.Version)
		}
	}

	// Step 6-7: dependency resolution.
	if err := in.resolveDependencies(stanza.Get("Depends"), debPath, attempted); err != nil {
		return err
	}

	// Step 8: metadata persistence.
	if err := in.ctx.DB.Write(name, ver, info); err != nil {
		return err
	}
	in.ctx.Installed.Put(info)

	// Step 9: payload placement.
	errCount := placeFiles(dataDir, in.ctx.Config.InstallDir, fileList)
	if errCount > 0 {
		log.Warnf("%d file(s) failed placement; package metadata reflects the intended state", errCount)
	}

	// Step 10: index refresh.
	if err := in.ctx.DB.RebuildAutocomplete(in.ctx.AutocompletePath()); err != nil {
		return err
	}

	log.Debugf("installed %s %s in %s", name, ver, time.Since(start))
	return nil
}

// resolveDependencies implements steps 6-7: each Depends atom is
// satisfied against the installed index, resolved via a sibling .deb
// and a recursive install, or accumulated as unsatisfied.
func (in *Installer) resolveDependencies(dependsHeader, debPath string, attempted map[string]struct{}) error {
	atoms, err := depends.Parse(dependsHeader)
	if err != nil {
		return err
	}

	var unsatisfied []string
	for _, atom := range atoms {
		if len(atom.Alternatives) == 0 {
			continue
		}
		alt := atom.Alternatives[0]

		satisfied, err := in.satisfiedByInstalled(alt)
		if err != nil {
			in.ctx.Log.WithError(err).Warnf("ignoring malformed constraint on %s", alt.Name)
		}
		if satisfied {
			continue
		}

		if _, seen := attempted[alt.Name]; seen {
			if !in.ctx.Force {
				unsatisfied = append(unsatisfied, alt.Name)
			}
			continue
		}
		attempted[alt.Name] = struct{}{}

		siblings, _ := filepath.Glob(filepath.Join(filepath.Dir(debPath), alt.Name+"*.deb"))
		if len(siblings) == 1 {
			if err := in.installOne(siblings[0], attempted); err != nil {
				if !in.ctx.Force {
					unsatisfied = append(unsatisfied, fmt.Sprintf("%s (%v)", alt.Name, err))
				}
			}
			continue
		}

		if !in.ctx.Force {
			unsatisfied = append(unsatisfied, alt.Name)
		}
	}

	if len(unsatisfied) > 0 && !in.ctx.Force {
		return fmt.Errorf("%w: unsatisfied dependencies %s (use --force to override)",
			rpkgerr.ErrConstraintUnsatisfied, strings.Join(unsatisfied, ", "))
	}
	return nil
}

func (in *Installer) satisfiedByInstalled(alt depends.Alternative) (bool, error) {
	inst, ok := in.ctx.Installed.Get(alt.Name)
	if !ok {
		return false, nil
	}
	if alt.Constraint == nil {
		return true, nil
	}
	installedVer, err := version.Parse(inst.Version)
	if err != nil {
		return false, err
	}
	return alt.Constraint.Satisfies(installedVer)
}

// placeFiles copies or links each entry of fileList from dataDir to
// installRoot using a bounded worker pool (spec.md §5): directories are
// created, regular files copied with source permissions, symlinks
// recreated. Individual failures increment a shared counter rather than
// aborting the package.
func placeFiles(dataDir, installRoot string, fileList []string) int64 {
	var errCount int64
	eg := new(errgroup.Group)
	eg.SetLimit(workerPoolSize())

	for _, rel := range fileList {
		rel := rel
		eg.Go(func() error {
			if err := placeOne(filepath.Join(dataDir, rel), filepath.Join(installRoot, rel)); err != nil {
				atomic.AddInt64(&errCount, 1)
			}
			return nil
		})
	}
	eg.Wait()
	return errCount
}

func placeOne(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	switch {
	case info.IsDir():
		return fsutil.Mkdirs(dst, 0755)
	case info.Mode()&os.ModeSymlink != 0:
		if err := fsutil.Mkdirs(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		return fsutil.CopySymlink(src, dst)
	default:
		if err := fsutil.Mkdirs(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		return fsutil.CopyFile(src, dst)
	}
}

// workerPoolSize computes the payload-placement pool size from the
// available CPU count and the one-minute load average, capped at
// maxWorkers (spec.md §5). Reading /proc/loadavg has no analogue in the
// example corpus; it is plain os.ReadFile against a well-known Linux
// path, not a concern any packaged library covers.
func workerPoolSize() int {
	n := runtime.NumCPU()
	if load, err := readLoadAvg1(); err == nil {
		if avail := n - int(load); avail > 0 {
			n = avail
		} else {
			n = 1
		}
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

func readLoadAvg1() (float64, error) {
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty /proc/loadavg")
	}
	return strconv.ParseFloat(fields[0], 64)
}
