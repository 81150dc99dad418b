package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Fatalf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
	if cfg.ExecuteTimeout != 60*time.Second {
		t.Fatalf("ExecuteTimeout = %v, want 60s", cfg.ExecuteTimeout)
	}
	if cfg.VaultKeyMount != "secret" || cfg.VaultKeyField != "key" {
		t.Fatalf("vault key source defaults = %q/%q", cfg.VaultKeyMount, cfg.VaultKeyField)
	}
}

func TestLoadRequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true}); err == nil {
		t.Fatal("LoadWithOptions() error = nil, want missing DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/patchbay")
	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/patchbay" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestLoadExecuteTimeout(t *testing.T) {
	t.Setenv("EXECUTE_TIMEOUT", "250ms")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ExecuteTimeout != 250*time.Millisecond {
		t.Fatalf("ExecuteTimeout = %v, want 250ms", cfg.ExecuteTimeout)
	}

	t.Setenv("EXECUTE_TIMEOUT", "0s")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ExecuteTimeout != 0 {
		t.Fatalf("ExecuteTimeout = %v, want 0 (disabled)", cfg.ExecuteTimeout)
	}

	t.Setenv("EXECUTE_TIMEOUT", "fast")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestHasHashiCorpVault(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HasHashiCorpVault() {
		t.Fatal("HasHashiCorpVault() = true with no address or token")
	}

	t.Setenv("VAULT_ADDR", "http://127.0.0.1:8200")
	t.Setenv("VAULT_TOKEN", "root")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.HasHashiCorpVault() {
		t.Fatal("HasHashiCorpVault() = false with address and token set")
	}
}
