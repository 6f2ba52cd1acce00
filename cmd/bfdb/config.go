// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oddsworks/bfdb/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir  = ".bfdb"
	defaultConfigFile = "config.yaml"
	configVersion     = "1"
)

// Config represents the .bfdb/config.yaml configuration file. Command-line
// flags override it field by field.
type Config struct {
	Version  string         `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
}

// DatabaseConfig locates the database root directory.
type DatabaseConfig struct {
	// Dir is the database root. Empty means the current directory.
	Dir string `yaml:"dir"`
}

// ImportConfig holds the defaults for the insert command.
type ImportConfig struct {
	// Policy resolves duplicate markets: skip, replace or update.
	Policy string `yaml:"policy"`
	// Pattern lays imported files out under the root: flat, event-id or
	// betfair-historical.
	Pattern string `yaml:"pattern"`
	// Copy leaves source files in place instead of moving them.
	Copy bool `yaml:"copy"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the HTTP listen address for /metrics. Empty disables it.
	Addr string `yaml:"addr,omitempty"`
}

// DefaultConfig returns a config with sensible defaults, with environment
// variables taking precedence over the built-in values.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		Database: DatabaseConfig{
			Dir: getEnv("BFDB_DATABASE_DIR", ""),
		},
		Import: ImportConfig{
			Policy:  getEnv("BFDB_DUPLICATE_POLICY", "skip"),
			Pattern: getEnv("BFDB_IMPORT_PATTERN", "flat"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("BFDB_METRICS_ADDR", ""),
		},
	}
}

// configLocation resolves the config file path: the explicit flag value if
// given, otherwise ./.bfdb/config.yaml.
func configLocation(configPath string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(defaultConfigDir, defaultConfigFile)
}

// LoadConfig reads the configuration file. A missing file is not an error:
// defaults apply. A malformed file is reported as a UserError.
func LoadConfig(configPath string) (*Config, error) {
	path := configLocation(configPath)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read configuration",
			fmt.Sprintf("Failed to read %s", path),
			"Check the file permissions, or remove the file to use defaults.",
			err,
		)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError(
			"Invalid configuration",
			fmt.Sprintf("%s is not valid YAML", path),
			"Fix the file, or remove it and recreate it with 'bfdb config --init'.",
			err,
		)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to disk, creating the config directory
// if needed.
func SaveConfig(cfg *Config, configPath string) error {
	path := configLocation(configPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewConfigError(
			"Cannot create configuration directory",
			fmt.Sprintf("Failed to create %s", filepath.Dir(path)),
			"Check the directory permissions.",
			err,
		)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewInternalError("Cannot encode configuration", err.Error(), "", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewConfigError(
			"Cannot write configuration",
			fmt.Sprintf("Failed to write %s", path),
			"Check the file permissions.",
			err,
		)
	}
	return nil
}

// databaseDir resolves the database root: the -d flag wins, then the config
// file, then the current directory.
func databaseDir(flagValue string, cfg *Config) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg.Database.Dir != "" {
		return cfg.Database.Dir
	}
	return "."
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
