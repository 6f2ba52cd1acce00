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

// openDatabase is the shared prologue of the small maintenance commands:
// parse a -d flag, load the config and open the database handle.
func openDatabase(name string, args []string, configPath, usage string, globals GlobalFlags) *database.Database {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	dir := fs.StringP("database", "d", "", "Database root directory")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
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
	db, err := database.Open(databaseDir(*dir, cfg), newLogger(globals, false))
	if err != nil {
		fatal(err, globals)
	}
	return db
}

// runClean executes the 'clean' CLI command, dropping index entries whose
// data files no longer exist on disk.
func runClean(args []string, configPath string, globals GlobalFlags) {
	db := openDatabase("clean", args, configPath, `Usage: bfdb clean [options]

Description:
  Remove index entries whose market data files were deleted from disk
  outside of bfdb. The files themselves are not touched.

Options:
`, globals)

	finish := attachProgress(db, NewProgressConfig(globals))
	removed, err := db.Clean()
	finish()
	if err != nil {
		fatal(err, globals)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"removed": removed})
		return
	}
	if !globals.Quiet {
		fmt.Printf("Removed %s stale index entries\n", ui.CountText(removed))
	}
}

// runSize executes the 'size' CLI command, printing the number of indexed
// markets.
func runSize(args []string, configPath string, globals GlobalFlags) {
	db := openDatabase("size", args, configPath, `Usage: bfdb size [options]

Description:
  Print the number of markets in the database index.

Options:
`, globals)

	n, err := db.Size()
	if err != nil {
		fatal(err, globals)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"markets": n})
		return
	}
	fmt.Println(n)
}

// runColumns executes the 'columns' CLI command, listing the index schema.
func runColumns(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("columns", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `Usage: bfdb columns

Description:
  List the columns of the database index, in schema order. These are
  the names usable in 'bfdb select' --columns and --where.

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cols := database.IndexColumns()
	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(cols)
		return
	}
	for _, col := range cols {
		fmt.Println(col)
	}
}
