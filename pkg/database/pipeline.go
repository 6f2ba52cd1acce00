// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/oddsworks/bfdb/pkg/market"
	"github.com/oddsworks/bfdb/pkg/marketdef"
	"github.com/oddsworks/bfdb/pkg/racing"
	"github.com/oddsworks/bfdb/pkg/storage"
)

// ProgressCallback is called to report progress during pipeline execution.
// Parameters:
//   - current: current item number (1-based)
//   - total: total number of items
//   - phase: current phase name ("pairing", "parsing", "importing")
type ProgressCallback func(current, total int64, phase string)

// Pipeline turns a directory of market files into index rows.
//
// A run has four strict passes: pair files by key and settle partial pairs,
// parse every complete pair, feed all parsed markets to the race cache, then
// import. The race pass must see every market of the batch before the first
// Get, so sibling markets find their WIN market regardless of file order.
type Pipeline struct {
	logger     *slog.Logger
	onProgress ProgressCallback
}

// RunOptions configures one pipeline run.
type RunOptions struct {
	// SourceDir is where market files are discovered.
	SourceDir string
	// DestDir is the database root the index rows refer to.
	DestDir string
	// Relocate moves or copies discovered files into DestDir. When false,
	// files are indexed where they are.
	Relocate bool
	// Mode, Policy and Pattern apply only when relocating.
	Mode    market.Mode
	Policy  market.DuplicatePolicy
	Pattern Pattern
}

// Result summarizes a pipeline run.
type Result struct {
	// RunID is the unique identifier for this run (UUID).
	RunID    string
	Counters Counters
	Duration time.Duration
}

// NewPipeline creates a pipeline logging through the given logger.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// SetProgressCallback sets an optional callback for progress reporting.
func (p *Pipeline) SetProgressCallback(cb ProgressCallback) {
	p.onProgress = cb
}

func (p *Pipeline) reportProgress(current, total int64, phase string) {
	if p.onProgress != nil {
		p.onProgress(current, total, phase)
	}
}

// Run executes the pipeline and writes the resulting rows through a single
// transaction on store. Per-market problems (corrupt metadata, unrecoverable
// data files) are counted and logged, never fatal; filesystem and index
// failures abort the run and leave the index untouched.
func (p *Pipeline) Run(store *storage.Store, opts RunOptions) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	pattern := opts.Pattern
	if pattern == nil {
		pattern = PatternFlat
	}

	var counters Counters

	pairs, err := locatePairs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("locate market files: %w", err)
	}
	counters.Total = len(pairs)
	p.logger.Info("pipeline.start", "run_id", runID, "source", opts.SourceDir, "pairs", len(pairs))

	// Settle partial pairs: metadata without data is dropped, data without
	// metadata gets a recovery attempt from the stream's market definition.
	recovered := make(map[string]marketdef.Definition)
	complete := make([]Pair, 0, len(pairs))
	for i, pr := range pairs {
		p.reportProgress(int64(i+1), int64(len(pairs)), "pairing")
		switch {
		case pr.Complete():
			complete = append(complete, pr)
		case pr.DataFile == "":
			counters.MissingData++
			p.logger.Warn("pipeline.missing_data", "metadata_file", pr.MetadataFile)
		default:
			path, def, err := marketdef.CreateDefinitionFile(pr.DataFile, false)
			switch {
			case errors.Is(err, marketdef.ErrDefinitionMissing):
				counters.MissingMetadata++
				p.logger.Warn("pipeline.missing_metadata", "data_file", pr.DataFile)
			case err != nil:
				counters.Corrupt++
				p.logger.Warn("pipeline.corrupt", "data_file", pr.DataFile, "error", err)
			default:
				definitionsRecovered.Inc()
				pr.MetadataFile = path
				if def != nil {
					recovered[pr.Key] = def
				}
				complete = append(complete, pr)
			}
		}
	}

	records := make([]*market.Market, 0, len(complete))
	for i, pr := range complete {
		p.reportProgress(int64(i+1), int64(len(complete)), "parsing")
		if def, ok := recovered[pr.Key]; ok {
			meta := market.NewDefinitionMetadata(def)
			records = append(records, market.NewWithMetadata(pr.MetadataFile, pr.DataFile, meta))
			continue
		}
		rec, err := market.New(pr.MetadataFile, pr.DataFile)
		if err != nil {
			counters.Corrupt++
			p.logger.Warn("pipeline.corrupt", "metadata_file", pr.MetadataFile, "error", err)
			continue
		}
		records = append(records, rec)
	}

	cache := racing.NewCache()
	for _, rec := range records {
		cache.Add(rec.Metadata().Racing())
	}

	tx, err := store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for i, rec := range records {
		p.reportProgress(int64(i+1), int64(len(records)), "importing")

		final := rec
		if opts.Relocate {
			destDir := filepath.Join(opts.DestDir, pattern(rec.Metadata()))
			final, err = market.Relocate(rec, destDir, opts.Mode, opts.Policy)
			if err != nil {
				return nil, fmt.Errorf("relocate %q: %w", rec.DataFile, err)
			}
		}

		switch final.Action {
		case market.ActionSkip:
			counters.Skipped++
			continue
		case market.ActionUpdate:
			if err := tx.DeleteByMetadataPath(final.MetadataFile); err != nil {
				return nil, err
			}
		}

		var ann *racing.Annotation
		if a, ok := cache.Get(final.Metadata().Racing()); ok {
			ann = &a
		}
		if err := tx.Insert(final.Row(ann)); err != nil {
			return nil, err
		}
		counters.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := counters.Validate(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	observeCounters(counters)
	runDuration.Observe(duration.Seconds())
	counters.LogSummary(p.logger, runID)

	return &Result{RunID: runID, Counters: counters, Duration: duration}, nil
}
