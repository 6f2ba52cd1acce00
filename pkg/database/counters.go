// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"fmt"
	"log/slog"
)

// Counters is the per-run accounting of what happened to every discovered
// market. Every pairing key is settled into exactly one terminal state, so
// the counters always reconcile against the total.
type Counters struct {
	// Total is the number of pairing keys discovered.
	Total int
	// Inserted counts rows written to the index, including updates of
	// existing rows.
	Inserted int
	// Skipped counts duplicates left untouched by the duplicate policy.
	Skipped int
	// Corrupt counts markets whose metadata could not be parsed.
	Corrupt int
	// MissingData counts metadata files with no matching data file.
	MissingData int
	// MissingMetadata counts data files whose metadata could neither be
	// found nor recovered from the stream.
	MissingMetadata int
}

// Validate checks that every discovered market reached a terminal state.
// A violation indicates a pipeline bug, not bad input.
func (c Counters) Validate() error {
	settled := c.Inserted + c.Skipped + c.Corrupt + c.MissingData + c.MissingMetadata
	if settled != c.Total {
		return fmt.Errorf("counters do not reconcile: %d settled of %d discovered", settled, c.Total)
	}
	return nil
}

// LogSummary emits the run accounting as one structured log record.
func (c Counters) LogSummary(logger *slog.Logger, runID string) {
	logger.Info("pipeline.summary",
		"run_id", runID,
		"total", c.Total,
		"inserted", c.Inserted,
		"skipped", c.Skipped,
		"corrupt", c.Corrupt,
		"missing_data", c.MissingData,
		"missing_metadata", c.MissingMetadata)
}
