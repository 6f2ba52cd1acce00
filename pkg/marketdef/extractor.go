// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package marketdef recovers market definitions from market data files.
//
// A Betfair stream file carries the market definition inside market change
// messages. The last occurrence describes the final state of the market, so
// extraction scans backwards. Plain files are scanned from the rear in 64 KiB
// blocks without reading the whole file; compressed files (zip, gzip, bz2)
// cannot be decompressed from the rear and are read fully instead.
package marketdef

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	marker = "marketDefinition"

	// reverseReadStep is the block size for the backward scan. Large enough
	// to contain the last line of the vast majority of stream files in a
	// single read.
	reverseReadStep = 64 * 1024
)

var markerBytes = []byte(marker)

// ErrDefinitionMissing reports that a data file contains no market
// definition. It is distinct from JSON parse errors: the former means "no
// usable record", the latter means "corrupt input".
var ErrDefinitionMissing = errors.New("market definition missing")

// Definition is a parsed market definition document.
type Definition map[string]any

// changeMessage is the shape of a stream line carrying a market definition.
type changeMessage struct {
	MC []struct {
		ID               string     `json:"id"`
		MarketDefinition Definition `json:"marketDefinition"`
	} `json:"mc"`
}

// Extract parses the last market definition in a market data file.
//
// The market id, ordinarily part of the enclosing market change message but
// not of the definition itself, is injected into the result as "marketId".
//
// Returns an error wrapping ErrDefinitionMissing when no definition line is
// found, and the underlying JSON error when the located line is malformed.
func Extract(dataFile string) (Definition, error) {
	line, err := lastDefinitionLine(dataFile)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, fmt.Errorf("%w in %q", ErrDefinitionMissing, dataFile)
	}

	var msg changeMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("parse definition line in %q: %w", dataFile, err)
	}
	if len(msg.MC) == 0 || msg.MC[0].MarketDefinition == nil {
		return nil, fmt.Errorf("malformed market change message in %q", dataFile)
	}
	def := msg.MC[0].MarketDefinition
	def["marketId"] = msg.MC[0].ID
	return def, nil
}

// OutputPath returns where the generated metadata file for a data file
// belongs: the pairing key (path with any compression suffix stripped) plus
// a .json extension, next to the data file.
func OutputPath(dataFile string) string {
	switch filepath.Ext(dataFile) {
	case ".zip", ".gz", ".bz2":
		dataFile = strings.TrimSuffix(dataFile, filepath.Ext(dataFile))
	}
	return dataFile + ".json"
}

// CreateDefinitionFile extracts the market definition from a data file and
// writes it next to it as <key>.json, returning the output path and the
// parsed definition so callers can avoid re-reading the file.
//
// Extraction is skipped when the output file already exists, unless
// overwrite is set; the returned Definition is nil in that case.
func CreateDefinitionFile(dataFile string, overwrite bool) (string, Definition, error) {
	outputFile := OutputPath(dataFile)
	if !overwrite {
		if _, err := os.Stat(outputFile); err == nil {
			return outputFile, nil, nil
		}
	}

	def, err := Extract(dataFile)
	if err != nil {
		return "", nil, err
	}
	// Compact encoding, matching how stream recorders write JSON.
	data, err := json.Marshal(def)
	if err != nil {
		return "", nil, fmt.Errorf("encode definition for %q: %w", dataFile, err)
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("write definition file: %w", err)
	}
	return outputFile, def, nil
}

// lastDefinitionLine locates the last line containing the definition marker.
// Returns nil with no error when the file has no such line.
func lastDefinitionLine(dataFile string) ([]byte, error) {
	switch filepath.Ext(dataFile) {
	case ".zip":
		return lastDefinitionLineZip(dataFile)
	case ".gz":
		return lastDefinitionLineCompressed(dataFile, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case ".bz2":
		return lastDefinitionLineCompressed(dataFile, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	default:
		return lastDefinitionLinePlain(dataFile)
	}
}

// lastDefinitionLinePlain first tries the backward block scan for the last
// line of the file. If that line lacks the marker, it falls back to a full
// forward scan.
func lastDefinitionLinePlain(dataFile string) ([]byte, error) {
	f, err := os.Open(dataFile)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	line, err := readLastLine(f)
	if err != nil {
		return nil, fmt.Errorf("scan %q backwards: %w", dataFile, err)
	}
	if bytes.Contains(line, markerBytes) {
		return line, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", dataFile, err)
	}
	return findLastMarkerLine(data), nil
}

func lastDefinitionLineZip(dataFile string) ([]byte, error) {
	zr, err := zip.OpenReader(dataFile)
	if err != nil {
		return nil, fmt.Errorf("open zip %q: %w", dataFile, err)
	}
	defer zr.Close()

	// The archive is expected to hold a single member named after the file's
	// base name without the .zip extension.
	member := strings.TrimSuffix(filepath.Base(dataFile), ".zip")
	for _, zf := range zr.File {
		if zf.Name != member {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %q: %w", member, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read zip member %q: %w", member, err)
		}
		return findLastMarkerLine(data), nil
	}
	return nil, fmt.Errorf("zip %q has no member %q", dataFile, member)
}

func lastDefinitionLineCompressed(dataFile string, wrap func(io.Reader) (io.Reader, error)) ([]byte, error) {
	f, err := os.Open(dataFile)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	r, err := wrap(f)
	if err != nil {
		return nil, fmt.Errorf("decompress %q: %w", dataFile, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress %q: %w", dataFile, err)
	}
	return findLastMarkerLine(data), nil
}

// findLastMarkerLine scans lines in reverse for the last one containing the
// definition marker. Returns nil when there is none.
func findLastMarkerLine(data []byte) []byte {
	lines := bytes.Split(data, []byte{'\n'})
	for i := len(lines) - 1; i >= 0; i-- {
		if bytes.Contains(lines[i], markerBytes) {
			return lines[i]
		}
	}
	return nil
}

// readLastLine returns the content after the last newline of the file by
// reading fixed-size blocks from the end. Lines may be arbitrarily long: the
// window keeps extending leftwards until a newline or the beginning of the
// file is reached.
func readLastLine(f io.ReadSeeker) ([]byte, error) {
	var buffer []byte
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	for {
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		step := int64(reverseReadStep)
		wholeFile := false
		if pos <= step {
			step = pos
			wholeFile = true
		}
		if _, err := f.Seek(-step, io.SeekCurrent); err != nil {
			return nil, err
		}
		chunk := make([]byte, step)
		if _, err := io.ReadFull(f, chunk); err != nil {
			return nil, err
		}
		buffer = append(chunk, buffer...)

		// Ignore the final byte in the search in case it is a trailing
		// newline.
		if len(buffer) > 0 {
			if idx := bytes.LastIndexByte(buffer[:len(buffer)-1], '\n'); idx >= 0 {
				return buffer[idx+1:], nil
			}
		}
		if wholeFile {
			return buffer, nil
		}
		// Roll the head back to undo the read before stepping further left.
		if _, err := f.Seek(-step, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
}
