package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "runepkgconfig")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFileOK(t *testing.T) {
	path := writeConfig(t, "runepkg_dir = /var/lib/runepkg\ncontrol_dir = /var/lib/runepkg/control\nrunepkg_db = /var/lib/runepkg/db\ninstall_dir = /\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.RunepkgDir != "/var/lib/runepkg" {
		t.Errorf("got RunepkgDir %q", cfg.RunepkgDir)
	}
	if cfg.InstallDir != "/" {
		t.Errorf("got InstallDir %q", cfg.InstallDir)
	}
}

func TestLoadFileMissingKey(t *testing.T) {
	path := writeConfig(t, "runepkg_dir = /var/lib/runepkg\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for missing required keys")
	}
}

func TestLoadFileExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}
	path := writeConfig(t, "runepkg_dir = ~/runepkg\ncontrol_dir = ~/runepkg/control\nrunepkg_db = ~/runepkg/db\ninstall_dir = /\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := filepath.Join(home, "runepkg")
	if cfg.RunepkgDir != want {
		t.Errorf("got %q, want %q", cfg.RunepkgDir, want)
	}
}

func TestLoadUsesEnvOverride(t *testing.T) {
	path := writeConfig(t, "runepkg_dir = /a\ncontrol_dir = /a/control\nrunepkg_db = /a/db\ninstall_dir = /\n")
	t.Setenv(EnvConfigPath, path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RunepkgDir != "/a" {
		t.Errorf("got %q", cfg.RunepkgDir)
	}
}
