// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package racing

import (
	"math"
	"testing"
)

func TestExtractMetadata_MilesAndFurlongs(t *testing.T) {
	// UK, IRE and USA names carry distances in miles and furlongs.
	tests := []struct {
		name     string
		furlongs float64
		raceType string
	}{
		{"2m Mdn Hrd", 16, "Mdn Hrd"},
		{"3m1f Beg Chs", 25, "Beg Chs"},
		{"6f Mdn", 6, "Mdn"},
		{"3m Grd3 Nov Chs", 24, "Grd3 Nov Chs"},
		{"R1 7f Claim", 7, "Claim"},
		{"R3 1m Stks", 8, "Stks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := ExtractMetadata(tt.name)
			if !md.HasDistance {
				t.Fatalf("ExtractMetadata(%q) has no distance", tt.name)
			}
			if md.DistanceFurlongs != tt.furlongs {
				t.Errorf("furlongs = %v, want %v", md.DistanceFurlongs, tt.furlongs)
			}
			wantMeters := tt.furlongs * MetersPerFurlong
			if math.Abs(md.DistanceMeters-wantMeters) > 1e-3 {
				t.Errorf("meters = %v, want %v", md.DistanceMeters, wantMeters)
			}
			if !md.HasRaceType || md.RaceType != tt.raceType {
				t.Errorf("race type = %q (has=%v), want %q", md.RaceType, md.HasRaceType, tt.raceType)
			}
		})
	}
}

func TestExtractMetadata_Meters(t *testing.T) {
	// AUS, RSA and greyhound names carry distances in meters.
	tests := []struct {
		name     string
		meters   float64
		raceType string
		hasType  bool
	}{
		{"R4 405m Gr3/4", 405, "Gr3/4", true},
		{"A2 462m", 462, "A2", true},
		{"D2 275m", 275, "D2", true},
		{"OR 500m", 500, "OR", true},
		{"R10 405m Gr5", 405, "Gr5", true},
		{"R2 1200m Plt", 1200, "Plt", true},
		{"R5 2185m Pace M", 2185, "Pace M", true},
		{"415m", 415, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := ExtractMetadata(tt.name)
			if !md.HasDistance {
				t.Fatalf("ExtractMetadata(%q) has no distance", tt.name)
			}
			if md.DistanceMeters != tt.meters {
				t.Errorf("meters = %v, want %v", md.DistanceMeters, tt.meters)
			}
			wantFurlongs := tt.meters / MetersPerFurlong
			if math.Abs(md.DistanceFurlongs-wantFurlongs) > 1e-3 {
				t.Errorf("furlongs = %v, want %v", md.DistanceFurlongs, wantFurlongs)
			}
			if md.HasRaceType != tt.hasType || md.RaceType != tt.raceType {
				t.Errorf("race type = %q (has=%v), want %q (has=%v)",
					md.RaceType, md.HasRaceType, tt.raceType, tt.hasType)
			}
		})
	}
}

func TestExtractMetadata_NoDistance(t *testing.T) {
	md := ExtractMetadata("PA Hcap")
	if md.HasDistance {
		t.Errorf("expected no distance, got %v m", md.DistanceMeters)
	}
	if !md.HasRaceType || md.RaceType != "PA Hcap" {
		t.Errorf("race type = %q, want %q", md.RaceType, "PA Hcap")
	}
}

func winMarket(name string) Market {
	return Market{
		EventTypeID: EventTypeGreyhoundRacing,
		CountryCode: "GB",
		Venue:       "Newcastle",
		StartTime:   "2022-04-19T17:19:00.000Z",
		MarketType:  "WIN",
		MarketName:  name,
	}
}

func TestCache_SiblingsShareAnnotation(t *testing.T) {
	cache := NewCache()

	win := winMarket("OR 500m")
	place := win
	place.MarketType = "PLACE"
	place.MarketName = "To Be Placed"

	cache.Add(win)
	cache.Add(place) // non-WIN, must not overwrite the cached entry

	winAnn, ok := cache.Get(win)
	if !ok {
		t.Fatal("Get(win) returned no annotation")
	}
	placeAnn, ok := cache.Get(place)
	if !ok {
		t.Fatal("Get(place) returned no annotation")
	}

	if winAnn != placeAnn {
		t.Errorf("annotations differ: %+v vs %+v", winAnn, placeAnn)
	}
	if placeAnn.DistanceMeters != 500 {
		t.Errorf("DistanceMeters = %v, want 500", placeAnn.DistanceMeters)
	}
	if placeAnn.RaceType != "OR" {
		t.Errorf("RaceType = %q, want OR", placeAnn.RaceType)
	}
	wantID := "4339,GB,Newcastle,2022-04-19T17:19:00.000Z"
	if placeAnn.RaceID != wantID {
		t.Errorf("RaceID = %q, want %q", placeAnn.RaceID, wantID)
	}
}

func TestCache_IgnoresNonRacingAndIncomplete(t *testing.T) {
	cache := NewCache()

	soccer := winMarket("Match Odds")
	soccer.EventTypeID = "1"
	cache.Add(soccer)
	if _, ok := cache.Get(soccer); ok {
		t.Error("non-racing market must not be annotated")
	}

	noVenue := winMarket("OR 500m")
	noVenue.Venue = ""
	cache.Add(noVenue)
	if _, ok := cache.Get(noVenue); ok {
		t.Error("market with incomplete race identity must not be annotated")
	}

	unseen := winMarket("OR 500m")
	unseen.Venue = "Sheffield"
	if _, ok := cache.Get(unseen); ok {
		t.Error("race never added must not resolve")
	}
}
