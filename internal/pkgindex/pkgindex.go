// Package pkgindex holds the two in-memory maps the install and remove
// engines consult: the installed index (persisted packages) and the
// installing index (cycle/duplicate suppression for one install
// invocation). Both are keyed by package name, mirroring the
// map-keyed-by-identity shape of the teacher's apt.PackageIndex
// (apt/apt.go), generalized here to two distinct maps with independent
// lifetimes instead of one aggregated "Packages" staging area.
package pkgindex

import (
	"sync"

	"github.com/michkochris/runepkg/internal/pkginfo"
)

// Installed is the mutex-guarded map of currently-installed packages,
// keyed by package name. It is reconciled against the persistent
// database at startup (spec.md §3) and kept in sync by the install and
// remove engines thereafter.
type Installed struct {
	mu       sync.RWMutex
	packages map[string]pkginfo.PkgInfo
}

// NewInstalled returns an empty installed index.
func NewInstalled() *Installed {
	return &Installed{packages: make(map[string]pkginfo.PkgInfo)}
}

// Get returns the record for name and whether it is present.
func (idx *Installed) Get(name string) (pkginfo.PkgInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.packages[name]
	return p, ok
}

// Put inserts or replaces the record for name.
func (idx *Installed) Put(info pkginfo.PkgInfo) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.packages[info.Name] = info
}

// Delete removes name from the index.
func (idx *Installed) Delete(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.packages, name)
}

// Len returns the number of installed packages.
func (idx *Installed) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.packages)
}

// All returns a snapshot slice of every installed record. The slice is a
// copy; mutating it does not affect the index.
func (idx *Installed) All() []pkginfo.PkgInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]pkginfo.PkgInfo, 0, len(idx.packages))
	for _, p := range idx.packages {
		out = append(out, p)
	}
	return out
}

// Installing tracks package names currently mid-install within a single
// top-level invocation, breaking dependency cycles: a name re-entering
// Installing while already present short-circuits to success (spec.md
// §4.G step 4).
type Installing struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewInstalling returns an empty installing index.
func NewInstalling() *Installing {
	return &Installing{names: make(map[string]struct{})}
}

// Enter records name as mid-install. It returns false if name was already
// present (the caller should short-circuit rather than recurse again).
func (idx *Installing) Enter(name string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.names[name]; exists {
		return false
	}
	idx.names[name] = struct{}{}
	return true
}

// Contains reports whether name is currently mid-install.
func (idx *Installing) Contains(name string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.names[name]
	return ok
}

// Leave removes name, releasing it on every return path of the install
// that entered it — callers are expected to `defer idx.Leave(name)`
// immediately after a successful Enter.
func (idx *Installing) Leave(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.names, name)
}
