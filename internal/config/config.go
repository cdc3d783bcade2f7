package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/canonical/maas-sub023/internal/tftp/session"
)

// Config is the runtime configuration for the transfer service.
type Config struct {
	BlockSize     int       `toml:"block_size"`
	RetryInterval string    `toml:"retry_interval"`
	RetryCount    int       `toml:"retry_count"`
	CacheSize     int       `toml:"cache_size"`
	Ops           OpsConfig `toml:"ops"`
}

// OpsConfig configures the status/metrics HTTP surface.
type OpsConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

func Default() Config {
	return Config{
		BlockSize:     session.DefaultBlockSize,
		RetryInterval: "1s",
		RetryCount:    10,
		CacheSize:     64,
		Ops: OpsConfig{
			Addr: ":9069",
		},
	}
}

// Load reads a TOML config file, overlaying defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.BlockSize < 8 || cfg.BlockSize > 65464 {
		return fmt.Errorf("config block_size out of range: %d", cfg.BlockSize)
	}
	if cfg.RetryCount <= 0 {
		return fmt.Errorf("config retry_count must be positive: %d", cfg.RetryCount)
	}
	if _, err := time.ParseDuration(cfg.RetryInterval); err != nil {
		return fmt.Errorf("config retry_interval invalid: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("config cache_size must be positive: %d", cfg.CacheSize)
	}
	if strings.TrimSpace(cfg.Ops.Addr) == "" {
		return fmt.Errorf("config ops.addr missing")
	}
	return nil
}

// SessionConfig translates runtime settings into per-transfer reliability
// settings.
func (c Config) SessionConfig() session.Config {
	interval, err := time.ParseDuration(c.RetryInterval)
	if err != nil {
		interval = time.Second
	}
	retries := make([]time.Duration, c.RetryCount)
	for i := range retries {
		retries[i] = interval
	}
	return session.Config{
		BlockSize: c.BlockSize,
		Retries:   retries,
	}
}
