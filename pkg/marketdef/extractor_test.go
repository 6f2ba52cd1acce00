// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package marketdef

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// defLine builds one stream line carrying a market definition.
func defLine(marketID, marketType string) string {
	return `{"op":"mcm","clk":"100","mc":[{"id":"` + marketID +
		`","marketDefinition":{"marketType":"` + marketType +
		`","eventTypeId":"7","status":"OPEN"}}]}`
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestExtract_LastLineFastPath(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890")
	writeFile(t, dataFile, defLine("1.234567890", "WIN")+"\n"+defLine("1.234567890", "PLACE"))

	def, err := Extract(dataFile)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if def["marketType"] != "PLACE" {
		t.Errorf("marketType = %v, want PLACE (the last definition wins)", def["marketType"])
	}
	if def["marketId"] != "1.234567890" {
		t.Errorf("marketId = %v, want injected 1.234567890", def["marketId"])
	}
}

func TestExtract_ForwardScanFallback(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890")
	// Definition in the middle, price updates after it: the backward shortcut
	// misses and the forward scan must find it.
	content := strings.Join([]string{
		defLine("1.234567890", "WIN"),
		`{"op":"mcm","clk":"101","mc":[{"id":"1.234567890","rc":[{"ltp":2.5,"id":1}]}]}`,
		`{"op":"mcm","clk":"102","mc":[{"id":"1.234567890","rc":[{"ltp":2.6,"id":1}]}]}`,
	}, "\n")
	writeFile(t, dataFile, content)

	def, err := Extract(dataFile)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if def["marketType"] != "WIN" {
		t.Errorf("marketType = %v, want WIN", def["marketType"])
	}
}

func TestExtract_DefinitionMissing(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890")
	writeFile(t, dataFile, `{"op":"mcm","clk":"101","mc":[{"id":"1.234567890","rc":[]}]}`)

	_, err := Extract(dataFile)
	if !errors.Is(err, ErrDefinitionMissing) {
		t.Fatalf("Extract error = %v, want ErrDefinitionMissing", err)
	}
}

func TestExtract_CorruptLineIsNotMissing(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890")
	writeFile(t, dataFile, `{"mc":[{"id":"1.2","marketDefinition":{broken}}]}`)

	_, err := Extract(dataFile)
	if err == nil {
		t.Fatal("Extract succeeded on corrupt input")
	}
	if errors.Is(err, ErrDefinitionMissing) {
		t.Fatal("corrupt input must not be reported as a missing definition")
	}
}

func TestReadLastLine_LongerThanBlockSize(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890")

	// Last line spans several backward-scan blocks.
	lastLine := "x" + strings.Repeat("y", 3*reverseReadStep) + "z"
	writeFile(t, dataFile, "first line\n"+lastLine)

	f, err := os.Open(dataFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := readLastLine(f)
	if err != nil {
		t.Fatalf("readLastLine: %v", err)
	}
	if string(got) != lastLine {
		t.Errorf("readLastLine returned %d bytes, want %d", len(got), len(lastLine))
	}
}

func TestReadLastLine_WholeFileIsOneLine(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890")
	content := strings.Repeat("a", reverseReadStep+17)
	writeFile(t, dataFile, content)

	f, err := os.Open(dataFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := readLastLine(f)
	if err != nil {
		t.Fatalf("readLastLine: %v", err)
	}
	if string(got) != content {
		t.Errorf("readLastLine returned %d bytes, want the whole file (%d)", len(got), len(content))
	}
}

func TestExtract_Gzip(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890.gz")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(defLine("1.234567890", "WIN") + "\n" + defLine("1.234567890", "EACH_WAY") + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dataFile, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := Extract(dataFile)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if def["marketType"] != "EACH_WAY" {
		t.Errorf("marketType = %v, want EACH_WAY", def["marketType"])
	}
}

func TestExtract_Zip(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("1.234567890") // member shares the file's base name
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(defLine("1.234567890", "WIN") + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dataFile, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := Extract(dataFile)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if def["marketId"] != "1.234567890" {
		t.Errorf("marketId = %v, want 1.234567890", def["marketId"])
	}
}

func TestCreateDefinitionFile(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "1.234567890")
	writeFile(t, dataFile, defLine("1.234567890", "WIN"))

	outputFile, def, err := CreateDefinitionFile(dataFile, false)
	if err != nil {
		t.Fatalf("CreateDefinitionFile: %v", err)
	}
	if want := dataFile + ".json"; outputFile != want {
		t.Errorf("output file = %s, want %s", outputFile, want)
	}
	if def == nil || def["marketId"] != "1.234567890" {
		t.Errorf("parsed definition not returned: %v", def)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("generated metadata file is not valid JSON: %v", err)
	}
	if onDisk["marketId"] != "1.234567890" {
		t.Errorf("marketId on disk = %v", onDisk["marketId"])
	}

	// Existing files are left alone.
	if _, def, err := CreateDefinitionFile(dataFile, false); err != nil || def != nil {
		t.Errorf("second call: def = %v, err = %v; want nil, nil", def, err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/db/1.234567890", "/db/1.234567890.json"},
		{"/db/1.234567890.zip", "/db/1.234567890.json"},
		{"/db/1.234567890.gz", "/db/1.234567890.json"},
		{"/db/1.234567890.bz2", "/db/1.234567890.json"},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.in); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
