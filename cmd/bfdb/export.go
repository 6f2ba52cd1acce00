// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/oddsworks/bfdb/internal/errors"
	"github.com/oddsworks/bfdb/internal/ui"
	"github.com/oddsworks/bfdb/pkg/database"
)

// runExport executes the 'export' CLI command, writing the index to CSV.
func runExport(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dir := fs.StringP("database", "d", "", "Database root directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bfdb export [options] <file.csv>

Description:
  Export the whole database index to <file.csv>, one row per indexed
  market with a header row. Null columns become empty fields.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  bfdb export index.csv
  bfdb export -d /data/betfair /tmp/betfair-index.csv

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	dest := fs.Arg(0)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logger := newLogger(globals, false)
	db, err := database.Open(databaseDir(*dir, cfg), logger)
	if err != nil {
		fatal(err, globals)
	}

	rows, err := db.ExportCSV(dest)
	if err != nil {
		fatal(err, globals)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(map[string]any{"file": dest, "rows": rows})
		return
	}
	if !globals.Quiet {
		fmt.Printf("Exported %s rows to %s\n", ui.CountText(rows), dest)
	}
}
