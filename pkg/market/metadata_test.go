// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"encoding/json"
	"testing"
)

const catalogueDoc = `{
	"marketId": "1.197931750",
	"marketName": "OR 500m",
	"marketStartTime": "2025-03-15T17:09:37.000Z",
	"description": {
		"persistenceEnabled": true,
		"bspMarket": true,
		"marketTime": "2025-03-15T17:09:37.000Z",
		"suspendTime": "2025-03-15T17:09:37.000Z",
		"bettingType": "ODDS",
		"turnInPlayEnabled": false,
		"marketType": "WIN",
		"priceLadderDescription": {"type": "CLASSIC"},
		"lineRangeInfo": {"marketUnit": "Goals"},
		"raceType": "Flat"
	},
	"runners": [{"selectionId": 1}, {"selectionId": 2}, {"selectionId": 3}],
	"eventType": {"id": "4339", "name": "Greyhound Racing"},
	"competition": {"id": "99", "name": "Some Cup"},
	"event": {
		"id": "31897626",
		"name": "Towc 15th Mar",
		"countryCode": "GB",
		"timezone": "Europe/London",
		"venue": "Towcester",
		"openDate": "2025-03-16T16:18:58.000Z"
	},
	"notInSchema": "dropped"
}`

func parseCatalogue(t *testing.T) Metadata {
	t.Helper()
	meta, err := Parse([]byte(catalogueDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := meta.(*CatalogueMetadata); !ok {
		t.Fatalf("Parse classified catalogue as %T", meta)
	}
	return meta
}

func TestCatalogueTransform(t *testing.T) {
	row := parseCatalogue(t).Row()

	if len(row) != len(Columns) {
		t.Fatalf("row has %d keys, want %d", len(row), len(Columns))
	}
	want := map[string]any{
		"marketId":                   "1.197931750",
		"marketName":                 "OR 500m",
		"marketType":                 "WIN",
		"bettingType":                "ODDS",
		"persistenceEnabled":         true,
		"bspMarket":                  true,
		"turnInPlayEnabled":          false,
		"raceType":                   "Flat",
		"priceLadderDescriptionType": "CLASSIC",
		"lineRangeInfoMarketUnit":    "Goals",
		"runners":                    3,
		"eventTypeId":                "4339",
		"eventTypeName":              "Greyhound Racing",
		"competitionId":              "99",
		"competitionName":            "Some Cup",
		"eventId":                    "31897626",
		"eventName":                  "Towc 15th Mar",
		"eventCountryCode":           "GB",
		"eventTimezone":              "Europe/London",
		"eventVenue":                 "Towcester",
		"eventOpenDate":              "2025-03-16T16:18:58.000Z",
		// March is winter time in London, so local equals UTC.
		"localDayOfWeek":       "Saturday",
		"localMarketStartTime": "2025-03-15 17:09:37+00:00",
		"localEventOpenDate":   "2025-03-16 16:18:58+00:00",
	}
	for col, v := range want {
		if row[col] != v {
			t.Errorf("row[%q] = %v, want %v", col, row[col], v)
		}
	}
	for _, col := range []string{"eachWayDivisor", "marketSettledTime", "raceId", ColMetadataFilePath, ColDataFilePath} {
		if row[col] != nil {
			t.Errorf("row[%q] = %v, want nil", col, row[col])
		}
	}
	if _, ok := row["notInSchema"]; ok {
		t.Error("field outside the schema must be dropped")
	}
}

func TestDefinitionTransform(t *testing.T) {
	doc := `{
		"marketId": "1.222222222",
		"name": "OR 500m",
		"marketType": "WIN",
		"marketTime": "2025-03-15T17:09:37.000Z",
		"openDate": "2025-03-16T16:18:58.000Z",
		"settledTime": "2025-03-17T23:39:22.000Z",
		"timezone": "Europe/Moscow",
		"countryCode": "RU",
		"venue": "Somewhere",
		"eventId": "31897626",
		"eventTypeId": "7",
		"bettingType": "ODDS",
		"runners": [{"id": 1}, {"id": 2}],
		"priceLadderDefinition": {"type": "CLASSIC"}
	}`
	meta, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := meta.(*DefinitionMetadata); !ok {
		t.Fatalf("Parse classified definition as %T", meta)
	}

	row := meta.Row()
	want := map[string]any{
		"marketId":                   "1.222222222",
		"marketName":                 "OR 500m",
		"marketStartTime":            "2025-03-15T17:09:37.000Z",
		"marketTime":                 "2025-03-15T17:09:37.000Z",
		"marketSettledTime":          "2025-03-17T23:39:22.000Z",
		"eventOpenDate":              "2025-03-16T16:18:58.000Z",
		"eventTimezone":              "Europe/Moscow",
		"eventCountryCode":           "RU",
		"eventVenue":                 "Somewhere",
		"eventId":                    "31897626",
		"eventTypeId":                "7",
		"runners":                    2,
		"priceLadderDescriptionType": "CLASSIC",
		"localDayOfWeek":             "Saturday",
		"localMarketStartTime":       "2025-03-15 20:09:37+03:00",
		"localEventOpenDate":         "2025-03-16 19:18:58+03:00",
		"localMarketSettledTime":     "2025-03-18 02:39:22+03:00",
	}
	for col, v := range want {
		if row[col] != v {
			t.Errorf("row[%q] = %v, want %v", col, row[col], v)
		}
	}
	// Original definition field names must not leak into the row.
	for _, col := range []string{"name", "openDate", "timezone", "countryCode", "venue", "settledTime"} {
		if _, ok := row[col]; ok {
			t.Errorf("renamed source field %q still present", col)
		}
	}
}

func TestTransformDeterminism(t *testing.T) {
	a := parseCatalogue(t).Row()
	b := parseCatalogue(t).Row()
	if !a.EqualContent(b) {
		t.Error("transforming the same document twice produced different rows")
	}
}

func TestEqualContentIgnoresPaths(t *testing.T) {
	a := parseCatalogue(t).Row().Clone()
	b := a.Clone()
	b[ColMetadataFilePath] = "/elsewhere/1.197931750.json"
	b[ColDataFilePath] = "/elsewhere/1.197931750"
	if !a.EqualContent(b) {
		t.Error("path columns must be excluded from content comparison")
	}

	c := a.Clone()
	c["marketName"] = "changed"
	if a.EqualContent(c) {
		t.Error("changed content compared as equal")
	}
}

func TestCatalogueWithoutTimezone(t *testing.T) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(catalogueDoc), &raw); err != nil {
		t.Fatal(err)
	}
	delete(raw["event"].(map[string]any), "timezone")

	row := NewCatalogueMetadata(raw).Row()
	for _, col := range []string{"localDayOfWeek", "localMarketStartTime", "localEventOpenDate", "localMarketSettledTime"} {
		if row[col] != nil {
			t.Errorf("row[%q] = %v, want nil without a timezone", col, row[col])
		}
	}
}

func TestRacingFields(t *testing.T) {
	rm := parseCatalogue(t).Racing()
	if rm.EventTypeID != "4339" || rm.CountryCode != "GB" || rm.Venue != "Towcester" {
		t.Errorf("racing fields = %+v", rm)
	}
	if rm.MarketType != "WIN" || rm.MarketName != "OR 500m" {
		t.Errorf("racing market type/name = %q/%q", rm.MarketType, rm.MarketName)
	}
	if rm.StartTime != "2025-03-15T17:09:37.000Z" {
		t.Errorf("racing start time = %q", rm.StartTime)
	}
}
