// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"github.com/oddsworks/bfdb/pkg/racing"
)

// Action is the pending index operation for a record, decided during
// duplicate resolution. Freshly discovered records default to ActionInsert.
type Action int

const (
	ActionInsert Action = iota
	ActionSkip
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionSkip:
		return "skip"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Market is one metadata+data file pair. The two paths are owned exclusively
// by this record until it is relocated; Relocate returns a successor record
// rather than mutating in place.
type Market struct {
	MetadataFile string
	DataFile     string
	Action       Action

	meta Metadata
}

// New creates a record for a metadata/data pair, parsing the metadata
// document from disk. A JSON error means the document is corrupt.
func New(metadataFile, dataFile string) (*Market, error) {
	meta, err := ParseFile(metadataFile)
	if err != nil {
		return nil, err
	}
	return NewWithMetadata(metadataFile, dataFile, meta), nil
}

// NewWithMetadata creates a record around already-parsed metadata, avoiding
// a re-read when the document was just generated from the data file.
func NewWithMetadata(metadataFile, dataFile string, meta Metadata) *Market {
	return &Market{
		MetadataFile: metadataFile,
		DataFile:     dataFile,
		Action:       ActionInsert,
		meta:         meta,
	}
}

// Metadata returns the record's parsed metadata variant.
func (m *Market) Metadata() Metadata { return m.meta }

// Racing reports whether the record describes a racing market.
func (m *Market) Racing() bool {
	return racing.IsRacingEventType(m.meta.Racing().EventTypeID)
}

// Row builds the full index row for this record: the metadata's base row
// plus the optional race annotation and the final file locations.
func (m *Market) Row(ann *racing.Annotation) FlatRow {
	row := m.meta.Row().Clone()
	if ann != nil {
		if ann.HasRaceType {
			row["raceTypeFromName"] = ann.RaceType
		}
		if ann.HasDistance {
			row["raceDistanceMeters"] = ann.DistanceMeters
			row["raceDistanceFurlongs"] = ann.DistanceFurlongs
		}
		row["raceId"] = ann.RaceID
	}
	row[ColMetadataFilePath] = m.MetadataFile
	row[ColDataFilePath] = m.DataFile
	return row
}
