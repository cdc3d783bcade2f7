package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/canonical/maas-sub023/internal/config"
)

// tftpsim config.toml key mapping to runtime and simulation settings.
type fileConfig struct {
	BlockSize     int      `toml:"block_size"`
	RetryInterval string   `toml:"retry_interval"`
	RetryCount    int      `toml:"retry_count"`
	CacheSize     int      `toml:"cache_size"`
	OpsAddr       string   `toml:"ops_addr"`
	CorsOrigins   []string `toml:"cors_origins"`
	LossRate      float64  `toml:"loss_rate"`
	Seed          int64    `toml:"seed"`
	File          string   `toml:"file"`
}

// simConfig is the fully resolved configuration for one simulator run.
type simConfig struct {
	Runtime  config.Config
	LossRate float64
	Seed     int64
	File     string
}

func defaultSimConfig() simConfig {
	return simConfig{
		Runtime: config.Default(),
		Seed:    1,
	}
}

// tftpsim loader for TOML config with default overlay.
func loadSimConfig(path string) (simConfig, error) {
	cfg := defaultSimConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return simConfig{}, fmt.Errorf("load tftpsim config: %w", err)
	}

	if meta.IsDefined("block_size") {
		cfg.Runtime.BlockSize = raw.BlockSize
	}
	if meta.IsDefined("retry_interval") {
		cfg.Runtime.RetryInterval = strings.TrimSpace(raw.RetryInterval)
	}
	if meta.IsDefined("retry_count") {
		cfg.Runtime.RetryCount = raw.RetryCount
	}
	if meta.IsDefined("cache_size") {
		cfg.Runtime.CacheSize = raw.CacheSize
	}
	if meta.IsDefined("ops_addr") {
		cfg.Runtime.Ops.Addr = strings.TrimSpace(raw.OpsAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.Runtime.Ops.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("loss_rate") {
		cfg.LossRate = raw.LossRate
	}
	if meta.IsDefined("seed") {
		cfg.Seed = raw.Seed
	}
	if meta.IsDefined("file") {
		cfg.File = strings.TrimSpace(raw.File)
	}

	if err := config.Validate(cfg.Runtime); err != nil {
		return simConfig{}, fmt.Errorf("load tftpsim config: %w", err)
	}
	if cfg.LossRate < 0 || cfg.LossRate >= 1 {
		return simConfig{}, fmt.Errorf("load tftpsim config: loss_rate %v out of range [0, 1)", cfg.LossRate)
	}
	return cfg, nil
}
