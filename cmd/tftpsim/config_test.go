package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSimConfigOverlaysDefaults(t *testing.T) {
	path := writeTempConfig(t, `
block_size = 1024
loss_rate = 0.25
seed = 7
file = "boot.img"
ops_addr = ":9100"
`)
	cfg, err := loadSimConfig(path)
	if err != nil {
		t.Fatalf("loadSimConfig: %v", err)
	}
	if cfg.Runtime.BlockSize != 1024 {
		t.Fatalf("block size = %d, want 1024", cfg.Runtime.BlockSize)
	}
	if cfg.Runtime.RetryCount != 10 {
		t.Fatalf("retry count = %d, want default 10", cfg.Runtime.RetryCount)
	}
	if cfg.Runtime.RetryInterval != "1s" {
		t.Fatalf("retry interval = %q, want default 1s", cfg.Runtime.RetryInterval)
	}
	if cfg.LossRate != 0.25 {
		t.Fatalf("loss rate = %v, want 0.25", cfg.LossRate)
	}
	if cfg.Seed != 7 {
		t.Fatalf("seed = %d, want 7", cfg.Seed)
	}
	if cfg.File != "boot.img" {
		t.Fatalf("file = %q, want boot.img", cfg.File)
	}
	if cfg.Runtime.Ops.Addr != ":9100" {
		t.Fatalf("ops addr = %q, want :9100", cfg.Runtime.Ops.Addr)
	}
}

func TestLoadSimConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"loss rate too high": "loss_rate = 1.5",
		"tiny block size":    "block_size = 4",
		"bad interval":       `retry_interval = "soon"`,
	}
	for name, body := range cases {
		if _, err := loadSimConfig(writeTempConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadSimConfigMissingFile(t *testing.T) {
	if _, err := loadSimConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
