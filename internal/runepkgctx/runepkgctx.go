// Package runepkgctx bundles the configured paths, in-memory indexes,
// and logger every core component needs into one explicit value, per
// spec.md §9's design note: replace global mutable state with a Context
// threaded through calls rather than package-level variables.
package runepkgctx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/michkochris/runepkg/internal/config"
	"github.com/michkochris/runepkg/internal/db"
	"github.com/michkochris/runepkg/internal/pkgindex"
)

// AutocompleteFilename is the DB-root-relative name of the autocomplete
// index file.
const AutocompleteFilename = "runepkg_autocomplete.bin"

// Context is the explicit state bundle threaded through install, remove,
// and query operations: configured paths, the persistent DB handle, the
// two in-memory indexes, and a structured logger.
type Context struct {
	Config config.Config

	DB         *db.DB
	Installed  *pkgindex.Installed
	Installing *pkgindex.Installing

	Log *logrus.Logger

	Verbose bool
	Force   bool
}

// New builds a Context from cfg: opens the DB, creates an empty
// installing index, and reconciles the installed index by scanning the
// DB root (spec.md §3's startup reconciliation invariant).
func New(cfg config.Config, verbose bool) (*Context, error) {
	d, err := db.Open(cfg.RunepkgDB)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	c := &Context{
		Config:     cfg,
		DB:         d,
		Installed:  pkgindex.NewInstalled(),
		Installing: pkgindex.NewInstalling(),
		Log:        log,
		Verbose:    verbose,
	}

	if err := c.reconcile(); err != nil {
		return nil, err
	}
	return c, nil
}

// AutocompletePath returns the path to this Context's autocomplete index.
func (c *Context) AutocompletePath() string {
	return filepath.Join(c.Config.RunepkgDB, AutocompleteFilename)
}

// reconcile scans the DB root and loads every discoverable package
// record into the installed index, matching spec.md §3: presence in the
// installed index and presence of a persistent directory must agree.
func (c *Context) reconcile() error {
	entries, err := c.DB.List("")
	if err != nil {
		return err
	}
	for _, dirName := range entries {
		name, version, ok := splitDirName(dirName)
		if !ok {
			c.Log.WithField("entry", dirName).Warn("skipping DB entry with unparseable directory name")
			continue
		}
		info, err := c.DB.Read(name, version)
		if err != nil {
			c.Log.WithError(err).WithField("entry", dirName).Warn("skipping unreadable DB entry")
			continue
		}
		c.Installed.Put(info)
	}
	return nil
}

// splitDirName splits "{name}-{version}" at its last hyphen. For a
// version carrying a revision ("hello-2.12-1") the split falls inside the
// version ("hello-2.12", "1"), but name+"-"+version still names the same
// directory, so DB.Read finds the record; reconcile keys the installed
// index by the name stored in that record, not by the split result.
func splitDirName(dirName string) (name, version string, ok bool) {
	for i := len(dirName) - 1; i >= 0; i-- {
		if dirName[i] == '-' {
			return dirName[:i], dirName[i+1:], true
		}
	}
	return "", "", false
}

// EnsureDirs creates the configured control scratch root and install
// root if they do not already exist.
func (c *Context) EnsureDirs() error {
	for _, dir := range []string{c.Config.ControlDir, c.Config.InstallDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %q: %w", dir, err)
		}
	}
	return nil
}
