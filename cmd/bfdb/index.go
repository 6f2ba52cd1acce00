// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/oddsworks/bfdb/internal/errors"
	"github.com/oddsworks/bfdb/internal/ui"
	"github.com/oddsworks/bfdb/pkg/database"
	"github.com/oddsworks/bfdb/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runIndex executes the 'index' CLI command, building the database index
// over the market files already inside the database directory.
//
// Flags:
//   - -d, --database: Database root directory (default: from config, else .)
//   - --force: Discard an existing index and rebuild from scratch
//   - --debug: Enable debug logging (default: false)
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	dir := fs.StringP("database", "d", "", "Database root directory")
	force := fs.Bool("force", false, "Discard an existing index and rebuild")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bfdb index [options]

Description:
  Build the database index over the market files inside the database
  directory. Files are paired up by market id, metadata is parsed and
  flattened, racing markets are annotated with race distance and type,
  and one row per market is written to the index.

  Data files without metadata are recovered where possible by extracting
  the final market definition from the stream itself.

  The index is a SQLite file named %s in the database root.

Options:
`, storage.IndexFilename)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Index the database in the current directory
  bfdb index

  # Index a specific directory, rebuilding an existing index
  bfdb index -d /data/betfair --force

  # Expose pipeline metrics while indexing a large tree
  bfdb index --metrics-addr :9090

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logger := newLogger(globals, *debug)
	startMetricsServer(firstNonEmpty(*metricsAddr, cfg.Metrics.Addr), logger)

	db, err := database.Open(databaseDir(*dir, cfg), logger)
	if err != nil {
		fatal(errors.NewDatabaseDirError(
			"Invalid database directory",
			err.Error(),
			"Pass an existing directory with -d, or set database.dir in the config.",
			err,
		), globals)
	}

	finish := attachProgress(db, NewProgressConfig(globals))
	result, err := db.Index(*force)
	finish()
	if err != nil {
		fatal(err, globals)
	}

	printRunSummary("Indexing complete", result, globals)
}

// startMetricsServer exposes /metrics on addr in the background. A no-op
// when addr is empty.
func startMetricsServer(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// printRunSummary reports a pipeline run on stdout, as JSON in JSON mode or
// as a human-readable block otherwise.
func printRunSummary(title string, result *database.Result, globals GlobalFlags) {
	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(map[string]any{
			"run_id":           result.RunID,
			"total":            result.Counters.Total,
			"inserted":         result.Counters.Inserted,
			"skipped":          result.Counters.Skipped,
			"corrupt":          result.Counters.Corrupt,
			"missing_data":     result.Counters.MissingData,
			"missing_metadata": result.Counters.MissingMetadata,
			"duration_ms":      result.Duration.Milliseconds(),
		})
		return
	}
	if globals.Quiet {
		return
	}

	c := result.Counters
	ui.Header(title)
	fmt.Printf("%s %s markets discovered\n", ui.Label("Total:"), ui.CountText(c.Total))
	_, _ = ui.Green.Printf("  inserted:         %d\n", c.Inserted)
	if c.Skipped > 0 {
		fmt.Printf("  skipped:          %d\n", c.Skipped)
	}
	if c.Corrupt > 0 {
		_, _ = ui.Red.Printf("  corrupt:          %d\n", c.Corrupt)
	}
	if c.MissingData > 0 {
		_, _ = ui.Yellow.Printf("  missing data:     %d\n", c.MissingData)
	}
	if c.MissingMetadata > 0 {
		_, _ = ui.Yellow.Printf("  missing metadata: %d\n", c.MissingMetadata)
	}
	fmt.Println(ui.DimText(fmt.Sprintf("run %s finished in %s", result.RunID, result.Duration.Round(time.Millisecond))))
}
