// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package database is the top-level API over a Betfair market file database:
// a directory tree of metadata/data file pairs with a SQLite index at its
// root. It ties together file pairing, metadata transformation, race
// annotation, duplicate resolution and the index store.
package database

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"github.com/oddsworks/bfdb/pkg/market"
	"github.com/oddsworks/bfdb/pkg/storage"
)

// Database is a handle on one database root directory. Methods that need the
// index open it per call; the handle itself holds no resources.
type Database struct {
	rootDir    string
	logger     *slog.Logger
	onProgress ProgressCallback
}

// Open validates rootDir and returns a handle on it. The directory must
// exist; the index need not, operations that require one say so.
func Open(rootDir string, logger *slog.Logger) (*Database, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("database directory %q: %w", rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("database directory %q is not a directory", rootDir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Database{rootDir: rootDir, logger: logger}, nil
}

// SetProgressCallback sets an optional callback for progress reporting,
// forwarded to every pipeline run.
func (d *Database) SetProgressCallback(cb ProgressCallback) {
	d.onProgress = cb
}

// Index builds the database index from the files already inside the root
// directory. Files are indexed in place. Fails with storage.ErrIndexExists
// when an index is present, unless force discards it.
func (d *Database) Index(force bool) (*Result, error) {
	store, err := storage.Create(d.rootDir, force)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return d.run(store, RunOptions{
		SourceDir: d.rootDir,
		DestDir:   d.rootDir,
	})
}

// InsertOptions configures an import of external files into the database.
type InsertOptions struct {
	// Copy leaves the source files in place instead of moving them.
	Copy bool
	// Policy resolves conflicts with already imported markets.
	Policy market.DuplicatePolicy
	// Pattern lays out the imported files under the root directory.
	Pattern Pattern
}

// Insert imports market files from sourceDir into the database: files are
// moved (or copied) into the root directory per the pattern, duplicates are
// resolved per the policy, and the index is updated. A database without an
// index is indexed first, so Insert works on a fresh directory.
func (d *Database) Insert(sourceDir string, opts InsertOptions) (*Result, error) {
	if !storage.Exists(d.rootDir) {
		if _, err := d.Index(false); err != nil {
			return nil, err
		}
	}
	store, err := storage.Open(d.rootDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	mode := market.ModeMove
	if opts.Copy {
		mode = market.ModeCopy
	}
	policy := opts.Policy
	if policy == "" {
		policy = market.PolicySkip
	}

	return d.run(store, RunOptions{
		SourceDir: sourceDir,
		DestDir:   d.rootDir,
		Relocate:  true,
		Mode:      mode,
		Policy:    policy,
		Pattern:   opts.Pattern,
	})
}

func (d *Database) run(store *storage.Store, opts RunOptions) (*Result, error) {
	pipeline := NewPipeline(d.logger)
	pipeline.SetProgressCallback(d.onProgress)
	return pipeline.Run(store, opts)
}

// Select queries the index. Fails with storage.ErrIndexMissing when the
// database has not been indexed.
func (d *Database) Select(opts storage.SelectOptions) ([]string, [][]any, error) {
	store, err := storage.Open(d.rootDir)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()
	return store.Select(opts)
}

// ExportCSV writes the whole index to dest as CSV with a header row and
// returns the number of data rows written. Nil columns become empty fields.
func (d *Database) ExportCSV(dest string) (int, error) {
	cols, rows, err := d.Select(storage.SelectOptions{})
	if err != nil {
		return 0, err
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("write export: %w", err)
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, v := range row {
			record[i] = csvField(v)
		}
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return 0, fmt.Errorf("write export: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func csvField(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Clean removes index rows whose data file no longer exists on disk and
// returns how many were removed.
func (d *Database) Clean() (int, error) {
	store, err := storage.Open(d.rootDir)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	return store.RemoveOrphans(func(current, total int64) {
		if d.onProgress != nil {
			d.onProgress(current, total, "cleaning")
		}
	})
}

// Size returns the number of indexed markets.
func (d *Database) Size() (int, error) {
	store, err := storage.Open(d.rootDir)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.Count()
}

// IndexColumns returns the index schema in column order.
func IndexColumns() []string {
	out := make([]string, len(market.Columns))
	copy(out, market.Columns)
	return out
}
