// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// bfdb is a command-line tool for managing a database of Betfair market
// files: stream recordings paired with their market metadata.
//
// Usage:
//
//	bfdb index                    Build the index over the database directory
//	bfdb insert <dir>             Import market files into the database
//	bfdb select [--where ...]     Query the index
//	bfdb export <file.csv>        Export the index as CSV
//	bfdb clean                    Drop index entries for deleted files
//	bfdb size                     Show the number of indexed markets
//	bfdb columns                  List the index columns
package main

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/oddsworks/bfdb/internal/errors"
	"github.com/oddsworks/bfdb/internal/ui"
	"github.com/oddsworks/bfdb/pkg/storage"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the global CLI flags that apply to all commands.
type GlobalFlags struct {
	JSON    bool // Output in JSON format (for applicable commands)
	NoColor bool // Disable color output
	Verbose int  // Verbosity level: 0=normal, 1=-v (info), 2=-vv (debug)
	Quiet   bool // Suppress non-essential output (progress, info messages)
}

// newLogger builds the logger for one command invocation. Logs go to stderr
// so JSON output on stdout stays machine-parseable.
func newLogger(globals GlobalFlags, debug bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case debug || globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose >= 1:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// fatal maps an error from the database layer onto a UserError and exits.
func fatal(err error, globals GlobalFlags) {
	var ue *errors.UserError
	switch {
	case stderrors.As(err, &ue):
	case stderrors.Is(err, storage.ErrIndexExists):
		ue = errors.NewIndexExistsError(
			"Database is already indexed",
			err.Error(),
			"Run 'bfdb index --force' to discard the existing index and rebuild it.",
			err,
		)
	case stderrors.Is(err, storage.ErrIndexMissing):
		ue = errors.NewIndexMissingError(
			"Database is not indexed",
			err.Error(),
			"Run 'bfdb index' to build the index first.",
			err,
		)
	case stderrors.Is(err, fs.ErrPermission):
		ue = errors.NewPermissionError(
			"Permission denied",
			err.Error(),
			"Check ownership and permissions of the database directory.",
			err,
		)
	default:
		ue = errors.NewDatabaseError("Operation failed", err.Error(), "", err)
	}
	errors.FatalError(ue, globals.JSON)
}

// main parses global flags and dispatches to the command handlers.
func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .bfdb/config.yaml (default: ./.bfdb/config.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output (progress, info messages)")
	)

	// Stop parsing at the first non-flag argument (the command name) so
	// subcommand flags like "insert --copy" reach the subcommand parsers.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `bfdb - Betfair market file database

bfdb organizes recorded Betfair market streams and their metadata into a
searchable database: a directory tree of file pairs with a SQLite index
at its root.

Usage:
  bfdb <command> [options]

Commands:
  index       Build the database index over the database directory
  insert      Import market files from another directory
  select      Query the index
  export      Export the whole index as CSV
  clean       Drop index entries whose data files were deleted
  size        Show the number of indexed markets
  columns     List the index columns
  config      Show or create the configuration file

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (-v for info, -vv for debug)
  -q, --quiet       Suppress non-essential output (progress, info messages)
  -c, --config      Path to .bfdb/config.yaml
  -V, --version     Show version and exit

Examples:
  bfdb index -d /data/betfair
  bfdb insert /downloads/markets --pattern betfair-historical
  bfdb select --where "eventTypeId = '7'" --limit 10
  bfdb export index.csv
  bfdb clean

For detailed command help: bfdb <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("bfdb version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}

	if *quiet && *verbose > 0 {
		fmt.Fprintf(os.Stderr, "Error: cannot use --quiet and --verbose together\n")
		os.Exit(1)
	}

	// JSON mode auto-enables quiet to keep stdout machine-parseable.
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{
		JSON:    *jsonOutput,
		NoColor: *noColor,
		Verbose: *verbose,
		Quiet:   *quiet,
	}

	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "insert":
		runInsert(cmdArgs, *configPath, globals)
	case "select":
		runSelect(cmdArgs, *configPath, globals)
	case "export":
		runExport(cmdArgs, *configPath, globals)
	case "clean":
		runClean(cmdArgs, *configPath, globals)
	case "size":
		runSize(cmdArgs, *configPath, globals)
	case "columns":
		runColumns(cmdArgs, globals)
	case "config":
		runConfigCmd(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
