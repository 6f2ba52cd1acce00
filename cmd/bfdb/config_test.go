// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Import.Policy != "skip" {
		t.Errorf("default policy = %q, want skip", cfg.Import.Policy)
	}
	if cfg.Import.Pattern != "flat" {
		t.Errorf("default pattern = %q, want flat", cfg.Import.Pattern)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: \"1\"\ndatabase:\n  dir: /data/betfair\nimport:\n  policy: update\n  copy: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Dir != "/data/betfair" {
		t.Errorf("dir = %q", cfg.Database.Dir)
	}
	if cfg.Import.Policy != "update" || !cfg.Import.Copy {
		t.Errorf("import = %+v", cfg.Import)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Import.Pattern != "flat" {
		t.Errorf("pattern = %q, want flat", cfg.Import.Pattern)
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("malformed config must not load")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Database.Dir = "/data/betfair"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Database.Dir != "/data/betfair" {
		t.Errorf("dir = %q after round trip", loaded.Database.Dir)
	}
}

func TestDatabaseDirPrecedence(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Dir: "/from/config"}}
	if got := databaseDir("/from/flag", cfg); got != "/from/flag" {
		t.Errorf("flag must win, got %q", got)
	}
	if got := databaseDir("", cfg); got != "/from/config" {
		t.Errorf("config must win over default, got %q", got)
	}
	if got := databaseDir("", &Config{}); got != "." {
		t.Errorf("default must be the current directory, got %q", got)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "a", "b"); got != "a" {
		t.Errorf("firstNonEmpty = %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty = %q", got)
	}
}
