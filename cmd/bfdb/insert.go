// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/oddsworks/bfdb/internal/errors"
	"github.com/oddsworks/bfdb/pkg/database"
	"github.com/oddsworks/bfdb/pkg/market"
)

// runInsert executes the 'insert' CLI command, importing market files from a
// source directory into the database.
//
// Flags:
//   - -d, --database: Database root directory (default: from config, else .)
//   - --policy: Duplicate policy: skip, replace or update (default: from config)
//   - --pattern: Import layout: flat, event-id or betfair-historical
//   - --copy: Copy source files instead of moving them
//   - --debug: Enable debug logging (default: false)
func runInsert(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	dir := fs.StringP("database", "d", "", "Database root directory")
	policyName := fs.String("policy", "", "Duplicate policy: skip, replace or update")
	patternName := fs.String("pattern", "", "Import layout: flat, event-id or betfair-historical")
	copyFiles := fs.Bool("copy", false, "Copy source files instead of moving them")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bfdb insert [options] <source-dir>

Description:
  Import market files from <source-dir> into the database. Files are
  moved (or copied with --copy) into the database directory according
  to the import pattern, duplicates are resolved per the duplicate
  policy, and the index is updated in the same run.

  A database directory without an index is indexed first, so insert
  works on a freshly created directory.

Duplicate policies:
  skip      Never touch already imported markets (default)
  replace   Always overwrite already imported markets
  update    Re-import only when the metadata content changed; a data
            file is only overwritten by a strictly larger one

Import patterns:
  flat                 All files directly in the database root (default)
  event-id             <root>/<event id>/
  betfair-historical   <root>/<year>/<Mon>/<day>/<event id>/

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Move downloaded files into the database
  bfdb insert /downloads/markets

  # Mirror the official historical data layout, keeping the sources
  bfdb insert /downloads/markets --pattern betfair-historical --copy

  # Re-import a corrected batch
  bfdb insert /downloads/markets --policy update

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	sourceDir := fs.Arg(0)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	policy, err := market.ParsePolicy(firstNonEmpty(*policyName, cfg.Import.Policy, "skip"))
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Invalid duplicate policy",
			err.Error(),
			"Use one of: skip, replace, update.",
			err,
		), globals.JSON)
	}
	pattern, err := database.ParsePattern(firstNonEmpty(*patternName, cfg.Import.Pattern))
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Invalid import pattern",
			err.Error(),
			"Use one of: flat, event-id, betfair-historical.",
			err,
		), globals.JSON)
	}

	logger := newLogger(globals, *debug)

	db, err := database.Open(databaseDir(*dir, cfg), logger)
	if err != nil {
		fatal(errors.NewDatabaseDirError(
			"Invalid database directory",
			err.Error(),
			"Pass an existing directory with -d, or set database.dir in the config.",
			err,
		), globals)
	}
	if _, err := os.Stat(sourceDir); err != nil {
		fatal(errors.NewDatabaseDirError(
			"Invalid source directory",
			err.Error(),
			"Pass an existing directory holding market files.",
			err,
		), globals)
	}

	finish := attachProgress(db, NewProgressConfig(globals))
	result, err := db.Insert(sourceDir, database.InsertOptions{
		Copy:    *copyFiles || cfg.Import.Copy,
		Policy:  policy,
		Pattern: pattern,
	})
	finish()
	if err != nil {
		fatal(err, globals)
	}

	printRunSummary("Import complete", result, globals)
}
