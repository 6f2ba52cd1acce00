// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package market models one recorded market: a metadata document paired with
// a stream data file, and the fixed-schema row the pair contributes to the
// index.
//
// Metadata comes in two shapes. Catalogue documents are authored by the
// recording software from the listMarketCatalogue API; definition documents
// are recovered from the stream itself (see pkg/marketdef). Both are parsed
// once into an explicit variant that carries its flat row, built eagerly at
// construction so no cache invalidation is ever needed.
package market

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/oddsworks/bfdb/pkg/racing"
)

// Columns is the fixed, ordered schema of the index table. The two file path
// columns stay at the end so the uniqueness constraint can be declared over
// the trailing pair.
var Columns = []string{
	"marketId",
	"marketName",
	"marketStartTime",
	"persistenceEnabled",
	"bspMarket",
	"marketTime",
	"suspendTime",
	"bettingType",
	"turnInPlayEnabled",
	"marketType",
	"priceLadderDescriptionType",
	"lineRangeInfoMarketUnit",
	"eachWayDivisor",
	"raceType",
	"runners",
	"eventTypeId",
	"eventTypeName",
	"competitionId",
	"competitionName",
	"eventId",
	"eventName",
	"eventCountryCode",
	"eventTimezone",
	"eventVenue",
	"eventOpenDate",
	"marketSettledTime",
	"localDayOfWeek",
	"localMarketStartTime",
	"localEventOpenDate",
	"localMarketSettledTime",
	"raceTypeFromName",
	"raceDistanceMeters",
	"raceDistanceFurlongs",
	"raceId",
	ColMetadataFilePath,
	ColDataFilePath,
}

const (
	ColMetadataFilePath = "marketMetadataFilePath"
	ColDataFilePath     = "marketDataFilePath"
)

// localTimeLayout matches how recorded local timestamps are rendered:
// "2025-03-15 20:09:37+03:00".
const localTimeLayout = "2006-01-02 15:04:05-07:00"

// FlatRow maps schema column names to scalar values (string, int, float64,
// bool or nil). Its key set is always exactly the schema.
type FlatRow map[string]any

// Clone returns an independent copy of the row.
func (r FlatRow) Clone() FlatRow {
	out := make(FlatRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values returns the row values in schema column order.
func (r FlatRow) Values() []any {
	out := make([]any, len(Columns))
	for i, col := range Columns {
		out[i] = r[col]
	}
	return out
}

// EqualContent compares two rows with the file path columns excluded.
// Cosmetic-only changes to a source document (whitespace, key order, fields
// outside the schema) therefore compare as equal.
func (r FlatRow) EqualContent(other FlatRow) bool {
	for _, col := range Columns {
		if col == ColMetadataFilePath || col == ColDataFilePath {
			continue
		}
		if !reflect.DeepEqual(r[col], other[col]) {
			return false
		}
	}
	return true
}

// Metadata is the tagged union over the two document shapes. The shape is
// decided once at parse time; Row returns the eagerly built flat row.
type Metadata interface {
	// Row returns the base flat row: every schema column present, race and
	// path columns nil. The caller must not mutate it; use Clone.
	Row() FlatRow
	// Racing returns the fields the race annotator needs. Missing source
	// fields are empty strings.
	Racing() racing.Market
	// EventID returns the owning event's id, used by import patterns.
	EventID() (string, bool)
	// ReferenceTime returns the market's settled time if recorded, otherwise
	// its start time. Import patterns group files by it.
	ReferenceTime() (string, bool)
}

// Parse decodes a metadata document and classifies its shape. Definitions
// carry a top-level "marketTime"; catalogues keep it inside "description".
func Parse(data []byte) (Metadata, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if _, ok := raw["marketTime"]; ok {
		return NewDefinitionMetadata(raw), nil
	}
	return NewCatalogueMetadata(raw), nil
}

// ParseFile reads and parses a metadata document from disk.
func ParseFile(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	return Parse(data)
}

// CatalogueMetadata is metadata sourced from a market catalogue document.
type CatalogueMetadata struct {
	raw map[string]any
	row FlatRow
}

// NewCatalogueMetadata wraps parsed catalogue data and builds its flat row.
func NewCatalogueMetadata(raw map[string]any) *CatalogueMetadata {
	m := &CatalogueMetadata{raw: raw}
	m.row = m.transform()
	return m
}

func (m *CatalogueMetadata) Row() FlatRow { return m.row }

func (m *CatalogueMetadata) Racing() racing.Market {
	return racing.Market{
		EventTypeID: nestedString(m.raw, "eventType", "id"),
		CountryCode: nestedString(m.raw, "event", "countryCode"),
		Venue:       nestedString(m.raw, "event", "venue"),
		StartTime:   asString(m.raw["marketStartTime"]),
		MarketType:  nestedString(m.raw, "description", "marketType"),
		MarketName:  asString(m.raw["marketName"]),
	}
}

func (m *CatalogueMetadata) EventID() (string, bool) {
	id := nestedString(m.raw, "event", "id")
	return id, id != ""
}

func (m *CatalogueMetadata) ReferenceTime() (string, bool) {
	if t := nestedString(m.raw, "description", "settledTime"); t != "" {
		return t, true
	}
	if t := asString(m.raw["marketStartTime"]); t != "" {
		return t, true
	}
	return "", false
}

func (m *CatalogueMetadata) transform() FlatRow {
	data := shallowCopy(m.raw)

	// Break out the description sub-object, flattening its own nested parts
	// first so their fields land in the schema namespace.
	if description, ok := data["description"].(map[string]any); ok {
		description = shallowCopy(description)
		delete(data, "description")
		flattenSub(description, "priceLadderDescription")
		flattenSub(description, "lineRangeInfo")
		for k, v := range description {
			data[k] = v
		}
	}

	// Local times need the event time zone; without it none are computed.
	if tz := nestedString(m.raw, "event", "timezone"); tz != "" {
		if openDate := nestedString(m.raw, "event", "openDate"); openDate != "" {
			mergeLocalTimes(data, tz,
				asString(m.raw["marketStartTime"]),
				openDate,
				nestedString(m.raw, "description", "settledTime"))
		}
	}

	// Only the number of selections is kept.
	if runners, ok := data["runners"].([]any); ok {
		data["runners"] = len(runners)
	}

	flattenSub(data, "eventType")
	flattenSub(data, "competition")
	flattenSub(data, "event")

	return projectRow(data)
}

// DefinitionMetadata is metadata recovered from a stream market definition.
type DefinitionMetadata struct {
	raw map[string]any
	row FlatRow
}

// NewDefinitionMetadata wraps a parsed definition and builds its flat row.
func NewDefinitionMetadata(raw map[string]any) *DefinitionMetadata {
	m := &DefinitionMetadata{raw: raw}
	m.row = m.transform()
	return m
}

func (m *DefinitionMetadata) Row() FlatRow { return m.row }

func (m *DefinitionMetadata) Racing() racing.Market {
	return racing.Market{
		EventTypeID: asString(m.raw["eventTypeId"]),
		CountryCode: asString(m.raw["countryCode"]),
		Venue:       asString(m.raw["venue"]),
		StartTime:   asString(m.raw["marketTime"]),
		MarketType:  asString(m.raw["marketType"]),
		MarketName:  asString(m.raw["name"]),
	}
}

func (m *DefinitionMetadata) EventID() (string, bool) {
	id := asString(m.raw["eventId"])
	return id, id != ""
}

func (m *DefinitionMetadata) ReferenceTime() (string, bool) {
	if t := asString(m.raw["settledTime"]); t != "" {
		return t, true
	}
	if t := asString(m.raw["marketTime"]); t != "" {
		return t, true
	}
	return "", false
}

// renames maps definition field names onto catalogue-style column names.
// The latter entries are not always provided by the stream.
var renames = [][2]string{
	{"name", "marketName"},
	{"openDate", "eventOpenDate"},
	{"timezone", "eventTimezone"},
	{"countryCode", "eventCountryCode"},
	{"venue", "eventVenue"},
	{"settledTime", "marketSettledTime"},
}

func (m *DefinitionMetadata) transform() FlatRow {
	data := shallowCopy(m.raw)

	if tz := asString(data["timezone"]); tz != "" {
		mergeLocalTimes(data, tz,
			asString(data["marketTime"]),
			asString(data["openDate"]),
			asString(data["settledTime"]))
	}

	// Alias so the output matches transformed catalogues.
	data["marketStartTime"] = data["marketTime"]

	if runners, ok := data["runners"].([]any); ok {
		data["runners"] = len(runners)
	}

	// priceLadderDefinition appears in self-recorded streams only.
	if pld, ok := data["priceLadderDefinition"].(map[string]any); ok {
		delete(data, "priceLadderDefinition")
		data["priceLadderDescriptionType"] = pld["type"]
	}

	for _, rename := range renames {
		old, newName := rename[0], rename[1]
		data[newName] = data[old]
		delete(data, old)
	}

	return projectRow(data)
}

// projectRow drops every field not in the schema and fills every schema
// field absent from the source with nil.
func projectRow(data map[string]any) FlatRow {
	row := make(FlatRow, len(Columns))
	for _, col := range Columns {
		if v, ok := data[col]; ok {
			row[col] = v
		} else {
			row[col] = nil
		}
	}
	row[ColMetadataFilePath] = nil
	row[ColDataFilePath] = nil
	return row
}

// flattenSub lifts one nested object into its parent under keys of the form
// parentKey + capitalize(childKey), preserving camel case.
func flattenSub(parent map[string]any, childKey string) {
	sub, ok := parent[childKey].(map[string]any)
	if !ok {
		return
	}
	delete(parent, childKey)
	for subKey, v := range sub {
		combined := childKey
		if subKey != "" {
			// Preserve camel case in the combined key.
			combined += strings.ToUpper(subKey[:1]) + subKey[1:]
		}
		parent[combined] = v
	}
}

// mergeLocalTimes converts the UTC source timestamps to the market's local
// zone and stores the derived fields. Each field is produced only when its
// source is present and parseable; an unknown zone produces none.
func mergeLocalTimes(data map[string]any, tz, marketStartTime, eventOpenDate, settledTime string) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return
	}
	if t, err := parseTimestamp(marketStartTime); err == nil {
		local := t.In(loc)
		data["localDayOfWeek"] = local.Weekday().String()
		data["localMarketStartTime"] = local.Format(localTimeLayout)
	}
	if t, err := parseTimestamp(eventOpenDate); err == nil {
		data["localEventOpenDate"] = t.In(loc).Format(localTimeLayout)
	}
	if t, err := parseTimestamp(settledTime); err == nil {
		data["localMarketSettledTime"] = t.In(loc).Format(localTimeLayout)
	}
}

// parseTimestamp parses Betfair's ISO 8601 format ("2023-06-01T17:09:37.000Z").
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return time.Parse(time.RFC3339, s)
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// nestedString returns m[outer][inner] as a string, or "" when absent.
func nestedString(m map[string]any, outer, inner string) string {
	sub, ok := m[outer].(map[string]any)
	if !ok {
		return ""
	}
	return asString(sub[inner])
}

// asString coerces scalar JSON values to strings. Ids occasionally arrive as
// numbers in self-recorded streams.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
