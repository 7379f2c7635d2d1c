// Package config loads engine.Config from a YAML file for hosts that
// prefer file-based configuration; the engine itself never reads files.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pageengine/pageengine/engine"
)

// fileConfig mirrors engine.Config with mapstructure tags for viper.
type fileConfig struct {
	PageSize          uint32 `mapstructure:"page_size"`
	PoolSize          uint32 `mapstructure:"pool_size"`
	DiskCapacity      uint32 `mapstructure:"disk_capacity"`
	OverflowThreshold uint32 `mapstructure:"overflow_threshold"`
}

// Load reads a YAML file at path and returns the engine configuration it
// describes.
func Load(path string) (engine.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return engine.Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return engine.Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	cfg := engine.Config{
		PageSize:          fc.PageSize,
		PoolSize:          fc.PoolSize,
		DiskCapacity:      fc.DiskCapacity,
		OverflowThreshold: fc.OverflowThreshold,
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}
