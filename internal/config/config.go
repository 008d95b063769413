// Package config loads runepkg's flat key=value configuration (spec.md
// §6). The teacher configures itself from YAML (main.go), but this tool's
// configuration is the plain properties format spec.md specifies, so
// loading is grounded on github.com/magiconair/properties instead —
// chosen because it is already present in the example corpus
// (google-osv-scalibr's indirect dependency set) and matches the format
// spec.md describes directly, rather than forcing YAML onto a format
// that was never YAML.
package config

import (
	"fmt"
	"os"

	"github.com/magiconair/properties"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/michkochris/runepkg/internal/rpkgerr"
)

// EnvConfigPath is the environment variable naming an explicit
// configuration file, taking precedence over the system and per-user
// paths.
const EnvConfigPath = "RUNEPKG_CONFIG_PATH"

// Config holds the resolved paths runepkg's core operates against.
type Config struct {
	RunepkgDir string // runepkg_dir: base directory for all state
	ControlDir string // control_dir: scratch root for archive extraction
	RunepkgDB  string // runepkg_db: persistent package database root
	InstallDir string // install_dir: target filesystem root for payload placement
}

const (
	keyRunepkgDir = "runepkg_dir"
	keyControlDir = "control_dir"
	keyRunepkgDB  = "runepkg_db"
	keyInstallDir = "install_dir"
)

// systemConfigPath, together with the per-user path resolvePath builds
// from the home directory, mirrors the lookup order spec.md §6 specifies:
// environment override, then system-wide, then per-user.
const (
	toolName         = "runepkg"
	systemConfigPath = "/etc/runepkg/runepkgconfig"
)

// Load resolves the configuration file per spec.md §6's lookup order:
// RUNEPKG_CONFIG_PATH, then the system-wide path, then the per-user path.
// The first path that exists is parsed; if none exist, Load returns an
// error (missing required keys have no default).
func Load() (Config, error) {
	path, err := resolvePath()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile parses path directly, bypassing the search order in Load.
func LoadFile(path string) (Config, error) {
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return Config{}, fmt.Errorf("%w: loading %q: %v", rpkgerr.ErrIO, path, err)
	}

	cfg := Config{}
	var missing []string
	for key, dst := range map[string]*string{
		keyRunepkgDir: &cfg.RunepkgDir,
		keyControlDir: &cfg.ControlDir,
		keyRunepkgDB:  &cfg.RunepkgDB,
		keyInstallDir: &cfg.InstallDir,
	} {
		val, ok := props.Get(key)
		if !ok || val == "" {
			missing = append(missing, key)
			continue
		}
		expanded, err := homedir.Expand(val)
		if err != nil {
			return Config{}, fmt.Errorf("%w: expanding %s=%q: %v", rpkgerr.ErrInvalidInput, key, val, err)
		}
		*dst = expanded
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: config %q missing required keys: %v", rpkgerr.ErrInvalidInput, path, missing)
	}
	return cfg, nil
}

func resolvePath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	if _, err := os.Stat(systemConfigPath); err == nil {
		return systemConfigPath, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("%w: resolving home directory: %v", rpkgerr.ErrIO, err)
	}
	userPath := home + "/." + toolName + "config"
	if _, err := os.Stat(userPath); err == nil {
		return userPath, nil
	}
	return "", fmt.Errorf("%w: no config file found (checked %s, %s, %s)",
		rpkgerr.ErrNotFound, EnvConfigPath, systemConfigPath, userPath)
}
