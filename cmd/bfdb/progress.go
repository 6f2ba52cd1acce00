// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/oddsworks/bfdb/pkg/database"
)

// ProgressConfig controls whether progress bars are rendered.
type ProgressConfig struct {
	Enabled bool
}

// NewProgressConfig derives the progress settings from the global flags.
// Bars are suppressed in quiet and JSON modes and when stderr is not a
// terminal.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	return ProgressConfig{
		Enabled: !globals.Quiet && !globals.JSON && isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// NewProgressBar creates a progress bar on stderr, or nil when disabled.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

// attachProgress wires a phase-aware progress bar into the database handle.
// The returned finish func closes the bar of the last phase.
func attachProgress(db *database.Database, cfg ProgressConfig) func() {
	var currentBar *progressbar.ProgressBar
	var currentPhase string

	db.SetProgressCallback(func(current, total int64, phase string) {
		// Create a new bar whenever the phase changes.
		if phase != currentPhase {
			if currentBar != nil {
				_ = currentBar.Finish()
			}
			currentPhase = phase
			currentBar = NewProgressBar(cfg, total, phaseDescription(phase))
		}
		if currentBar != nil {
			_ = currentBar.Set64(current)
		}
	})

	return func() {
		if currentBar != nil {
			_ = currentBar.Finish()
		}
	}
}

func phaseDescription(phase string) string {
	switch phase {
	case "pairing":
		return "Pairing market files"
	case "parsing":
		return "Parsing metadata"
	case "importing":
		return "Importing markets"
	case "cleaning":
		return "Checking data files"
	default:
		return phase
	}
}
