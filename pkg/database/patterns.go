// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oddsworks/bfdb/pkg/market"
)

// Pattern decides the subdirectory, relative to the database root, that an
// imported market's files are placed in. An empty result means the root
// itself; patterns fall back to it when the metadata lacks the fields they
// need rather than failing the import.
type Pattern func(meta market.Metadata) string

// PatternFlat places every market directly in the database root.
func PatternFlat(market.Metadata) string { return "" }

// PatternEventID groups markets by their owning event id.
func PatternEventID(meta market.Metadata) string {
	id, ok := meta.EventID()
	if !ok {
		return ""
	}
	return id
}

// PatternBetfairHistorical mirrors the layout of Betfair's official
// historical data dumps: <year>/<Mon>/<day>/<event id>, dated by the
// market's settled time when recorded, otherwise its start time.
func PatternBetfairHistorical(meta market.Metadata) string {
	id, ok := meta.EventID()
	if !ok {
		return ""
	}
	ref, ok := meta.ReferenceTime()
	if !ok {
		return id
	}
	t, err := time.Parse(time.RFC3339, ref)
	if err != nil {
		return id
	}
	return filepath.Join(
		strconv.Itoa(t.Year()),
		t.Month().String()[:3],
		strconv.Itoa(t.Day()),
		id)
}

// ParsePattern resolves a pattern name from user input.
func ParsePattern(name string) (Pattern, error) {
	switch name {
	case "flat", "":
		return PatternFlat, nil
	case "event-id":
		return PatternEventID, nil
	case "betfair-historical":
		return PatternBetfairHistorical, nil
	}
	return nil, fmt.Errorf("unknown import pattern %q (want flat, event-id or betfair-historical)", name)
}
