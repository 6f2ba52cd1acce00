// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Pair is one pairing key with whichever of the two files were found for it.
// A complete pair has both; a partial pair is either recovered (data only,
// via definition extraction) or dropped (metadata only).
type Pair struct {
	Key          string
	MetadataFile string
	DataFile     string
}

// Complete reports whether both files of the pair are present.
func (p Pair) Complete() bool {
	return p.MetadataFile != "" && p.DataFile != ""
}

// dataSuffixes are the compression extensions recognized on market data
// files. The pairing key strips them so "1.555.gz" pairs with "1.555.json".
var dataSuffixes = map[string]bool{
	".zip": true,
	".gz":  true,
	".bz2": true,
}

// locatePairs walks dir and pairs up market files by key.
//
// Candidate files are those named after a market id ("1.<digits>", possibly
// with a compression or .json extension). Uncompressed data files have no
// real extension; their market id tail is longer than any recognized suffix,
// which is how they are told apart from unrelated dotted files.
//
// Pairs are returned sorted by key so runs are deterministic.
func locatePairs(dir string) ([]Pair, error) {
	pairs := make(map[string]*Pair)

	upsert := func(key string) *Pair {
		if p, ok := pairs[key]; ok {
			return p
		}
		p := &Pair{Key: key}
		pairs[key] = p
		return p
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), "1.") {
			return nil
		}
		ext := filepath.Ext(path)
		switch {
		case ext == ".json":
			upsert(strings.TrimSuffix(path, ext)).MetadataFile = path
		case dataSuffixes[strings.ToLower(ext)]:
			upsert(strings.TrimSuffix(path, ext)).DataFile = path
		case len(ext) > 8:
			// "1.234567890": the "extension" is the market id tail.
			upsert(path).DataFile = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
