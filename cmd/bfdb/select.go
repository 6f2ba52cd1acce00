// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/oddsworks/bfdb/internal/errors"
	"github.com/oddsworks/bfdb/pkg/database"
	"github.com/oddsworks/bfdb/pkg/storage"
)

// runSelect executes the 'select' CLI command, querying the index.
//
// Flags:
//   - -d, --database: Database root directory (default: from config, else .)
//   - --columns: Comma-separated column list (default: all columns)
//   - --where: SQL predicate over the index columns
//   - --limit: Maximum number of rows (default: unlimited)
func runSelect(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	dir := fs.StringP("database", "d", "", "Database root directory")
	columns := fs.String("columns", "", "Comma-separated columns to return (default: all)")
	where := fs.String("where", "", "SQL predicate over the index columns")
	limit := fs.Int("limit", 0, "Maximum number of rows (0 for unlimited)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bfdb select [options]

Description:
  Query the database index. The --where predicate is standard SQL over
  the index columns; run 'bfdb columns' for the full column list.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # All indexed horse racing markets
  bfdb select --where "eventTypeId = '7'"

  # Market ids and venues of UK WIN markets, as JSON
  bfdb select --columns marketId,eventVenue \
      --where "marketType = 'WIN' AND eventCountryCode = 'GB'" --json

  # A quick sample of the index
  bfdb select --limit 5

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logger := newLogger(globals, false)
	db, err := database.Open(databaseDir(*dir, cfg), logger)
	if err != nil {
		fatal(err, globals)
	}

	opts := storage.SelectOptions{Where: *where, Limit: *limit}
	if *columns != "" {
		for _, col := range strings.Split(*columns, ",") {
			opts.Columns = append(opts.Columns, strings.TrimSpace(col))
		}
	}

	cols, rows, err := db.Select(opts)
	if err != nil {
		fatal(err, globals)
	}

	if globals.JSON {
		out := make([]map[string]any, len(rows))
		for i, row := range rows {
			rec := make(map[string]any, len(cols))
			for j, col := range cols {
				rec[col] = row[j]
			}
			out[i] = rec
		}
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(out)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	for _, row := range rows {
		fields := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				fields[i] = ""
			} else {
				fields[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(fields, "\t"))
	}
	_ = w.Flush()

	if !globals.Quiet {
		fmt.Fprintf(os.Stderr, "%d rows\n", len(rows))
	}
}
