package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsAppliedOverPartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
cache:
  root: "` + filepath.ToSlash(tmpDir) + `/cache"

backend:
  type: mirror
  mirror:
    root: "` + filepath.ToSlash(tmpDir) + `/origin"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
	if cfg.Cache.PrefetchWindow != 4 {
		t.Errorf("Cache.PrefetchWindow = %d, want 4", cfg.Cache.PrefetchWindow)
	}
	if cfg.Cache.PrefetchWorkers != 4 {
		t.Errorf("Cache.PrefetchWorkers = %d, want 4", cfg.Cache.PrefetchWorkers)
	}
	if cfg.Cache.CacheBlocksCapacity != 200_000 {
		t.Errorf("Cache.CacheBlocksCapacity = %d, want 200000", cfg.Cache.CacheBlocksCapacity)
	}
	if cfg.Cache.AllowDirtyEviction {
		t.Error("Cache.AllowDirtyEviction default should be false")
	}
}

func TestLoad_NoConfigFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	missing := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Type != "mirror" {
		t.Errorf("Backend.Type = %q, want mirror", cfg.Backend.Type)
	}
}

func TestLoad_RejectsInvalidBackendType(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
cache:
  root: "` + filepath.ToSlash(tmpDir) + `/cache"

backend:
  type: ftp
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected an error for an unsupported backend type")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Cache.Root = filepath.Join(tmpDir, "cache")

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Cache.Root != cfg.Cache.Root {
		t.Errorf("Cache.Root = %q, want %q", loaded.Cache.Root, cfg.Cache.Root)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestGetDefaultConfig_PassesValidation(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate cleanly: %v", err)
	}
}

func TestValidate_RejectsMissingCacheRoot(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Root = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty cache root")
	}
}
