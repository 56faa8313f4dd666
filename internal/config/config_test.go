package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accountd.yaml")
	raw := `
server:
  address: ":9090"
account:
  address: "0x1111111111111111111111111111111111111111"
  threshold: 2
  members:
    - addr: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
      weight: 1
storage:
  intent_store:
    driver: mysql
    dsn: "user:pass@tcp(127.0.0.1:3306)/smartaccount"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Fatalf("explicit value lost: %s", cfg.Server.Address)
	}
	if cfg.Storage.IntentStore.Driver != "mysql" {
		t.Fatalf("unexpected driver: %s", cfg.Storage.IntentStore.Driver)
	}
	if cfg.Bus.Driver != "memory" {
		t.Fatalf("bus driver default not applied: %s", cfg.Bus.Driver)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("data dir default not applied: %s", cfg.Runtime.DataDir)
	}
	if cfg.Logging.AuditFile != filepath.Join(cfg.Runtime.DataDir, "audit.log") {
		t.Fatalf("audit file default not applied: %s", cfg.Logging.AuditFile)
	}
	if cfg.Account.Threshold != 2 || len(cfg.Account.Members) != 1 {
		t.Fatalf("account section not parsed: %+v", cfg.Account)
	}
}

func TestLoadFailures(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		if _, err := Load(""); err == nil {
			t.Fatal("expected error for empty path")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("server: [::"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatal("expected error for malformed yaml")
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected default address: %s", cfg.Server.Address)
	}
	if cfg.Storage.IntentStore.Driver != "memory" || cfg.Bus.Driver != "memory" {
		t.Fatalf("unexpected default drivers: %+v", cfg)
	}
}
