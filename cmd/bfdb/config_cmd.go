// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/oddsworks/bfdb/internal/errors"
	"github.com/oddsworks/bfdb/internal/ui"
)

// runConfigCmd executes the 'config' CLI command: show the effective
// configuration, or create the config file with --init.
func runConfigCmd(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	initFile := fs.Bool("init", false, "Write the default configuration file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bfdb config [options]

Description:
  Show the effective configuration: the config file merged over the
  built-in defaults and environment variables. With --init, write the
  defaults to %s for editing.

Options:
`, configLocation(configPath))
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if *initFile {
		path := configLocation(configPath)
		if _, err := os.Stat(path); err == nil {
			errors.FatalError(errors.NewConfigError(
				"Configuration file already exists",
				fmt.Sprintf("%s is already present", path),
				"Edit the existing file, or remove it first.",
				nil,
			), globals.JSON)
		}
		if err := SaveConfig(cfg, configPath); err != nil {
			errors.FatalError(err, globals.JSON)
		}
		if !globals.Quiet {
			fmt.Printf("Wrote %s\n", path)
		}
		return
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(cfg)
		return
	}

	ui.Header("Configuration")
	data, err := yaml.Marshal(cfg)
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot encode configuration", err.Error(), "", err), globals.JSON)
	}
	os.Stdout.Write(data)
}
