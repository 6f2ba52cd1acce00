// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package racing derives additional metadata for racing markets.
//
// Betfair does not publish race distance or race type as structured fields.
// Both are, however, embedded in the name of the race's principal WIN market
// ("2m Mdn Hrd", "R4 405m Gr3/4"). This package parses those names and caches
// the result per physical race so every sibling market (PLACE, FORECAST, ...)
// of the same race can be annotated with it.
package racing

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	MetersPerFurlong = 201.168
	FurlongsPerMile  = 8

	winMarketType = "WIN"
)

// Event type ids that identify racing markets.
const (
	EventTypeHorseRacing     = "7"
	EventTypeGreyhoundRacing = "4339"
)

var (
	// Optional "<n>m"/"<n>M" mile component followed by an optional "<n>f"
	// furlong component.
	raceDistRegex = regexp.MustCompile(`(?:(\d*)[Mm])?(?:(\d*)f)?`)
	// Race type is whatever remains after stripping a leading race-number
	// token ("R4") and surrounding whitespace.
	raceTypeRegex = regexp.MustCompile(`(?:R\d+)?(?:\s+)?(.*\S)`)
)

// IsRacingEventType reports whether the event type id denotes a racing market.
func IsRacingEventType(eventTypeID string) bool {
	return eventTypeID == EventTypeHorseRacing || eventTypeID == EventTypeGreyhoundRacing
}

// Metadata holds race attributes recovered from a WIN market's name.
// HasDistance and HasRaceType distinguish "not present" from zero values.
type Metadata struct {
	RaceType         string
	HasRaceType      bool
	DistanceMeters   float64
	DistanceFurlongs float64
	HasDistance      bool
}

// Annotation is the metadata served to every market of a race, together with
// the race identity it was cached under.
type Annotation struct {
	Metadata
	RaceID string
}

// Market carries the fields the cache needs from a market's metadata.
// Empty strings mean the source document did not provide the field.
type Market struct {
	EventTypeID string
	CountryCode string
	Venue       string
	StartTime   string
	MarketType  string
	MarketName  string
}

// raceID builds the composite race identity, or "" when any component is
// missing. Two markets share a physical race iff they share this key.
func (m Market) raceID() string {
	if m.EventTypeID == "" || m.CountryCode == "" || m.Venue == "" || m.StartTime == "" {
		return ""
	}
	return strings.Join([]string{m.EventTypeID, m.CountryCode, m.Venue, m.StartTime}, ",")
}

// ExtractMetadata parses the race distance and race type out of a market name.
//
// Distance handling mirrors how Betfair writes names in different countries:
// "2m3f" style means miles and furlongs, while "405m" style means meters. A
// bare "m" number below 20 is disambiguated as furlongs written without the
// "f" suffix.
func ExtractMetadata(marketName string) Metadata {
	var md Metadata

	var mDigits, fDigits string
	found := false
	for _, groups := range raceDistRegex.FindAllStringSubmatch(marketName, -1) {
		if groups[1] != "" || groups[2] != "" {
			mDigits, fDigits = groups[1], groups[2]
			found = true
			break
		}
	}

	if found {
		mValue, _ := strconv.ParseFloat(mDigits, 64)
		fValue, _ := strconv.ParseFloat(fDigits, 64)

		if fValue > 0 || mValue < 20 {
			md.DistanceFurlongs = mValue*FurlongsPerMile + fValue
			md.DistanceMeters = md.DistanceFurlongs * MetersPerFurlong
		} else {
			md.DistanceMeters = mValue
			md.DistanceFurlongs = mValue / MetersPerFurlong
		}
		md.HasDistance = true

		// Strip the distance tokens so the remainder is just the race type.
		if mValue > 0 {
			marketName = strings.ReplaceAll(marketName, mDigits+"m", "")
			marketName = strings.ReplaceAll(marketName, mDigits+"M", "")
		}
		if fValue > 0 {
			marketName = strings.ReplaceAll(marketName, fDigits+"f", "")
		}
	}

	if groups := raceTypeRegex.FindStringSubmatch(marketName); groups != nil {
		md.RaceType = groups[1]
		md.HasRaceType = true
	}
	return md
}

// Cache accumulates race metadata keyed by race identity.
//
// The protocol is two-phase: Add every market of a batch first, then Get for
// each of them. State is append-only within a run and a Cache must not be
// shared between runs.
type Cache struct {
	lookup map[string]Metadata
}

// NewCache returns an empty race metadata cache.
func NewCache() *Cache {
	return &Cache{lookup: make(map[string]Metadata)}
}

// Add records race metadata if the market is a racing WIN market with a
// complete race identity. Incomplete or unsuitable markets are ignored.
func (c *Cache) Add(m Market) {
	if !IsRacingEventType(m.EventTypeID) || m.MarketType != winMarketType {
		return
	}
	id := m.raceID()
	if id == "" || m.MarketName == "" {
		return
	}
	c.lookup[id] = ExtractMetadata(m.MarketName)
}

// Get returns the cached annotation for the market's race. The second return
// value is false for non-racing markets and races never seen by Add.
func (c *Cache) Get(m Market) (Annotation, bool) {
	if !IsRacingEventType(m.EventTypeID) {
		return Annotation{}, false
	}
	id := m.raceID()
	md, ok := c.lookup[id]
	if id == "" || !ok {
		return Annotation{}, false
	}
	return Annotation{Metadata: md, RaceID: id}, true
}
