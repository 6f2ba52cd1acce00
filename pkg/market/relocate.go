// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Mode selects how Relocate transfers files. ModeMove consumes the source
// files; ModeCopy leaves them intact.
type Mode int

const (
	ModeMove Mode = iota
	ModeCopy
)

// DuplicatePolicy governs how an incoming record is reconciled against an
// already present pair at the same destination.
type DuplicatePolicy string

const (
	// PolicySkip never touches existing files.
	PolicySkip DuplicatePolicy = "skip"
	// PolicyReplace always overwrites existing files.
	PolicyReplace DuplicatePolicy = "replace"
	// PolicyUpdate replaces the metadata file only when its indexed content
	// changed, and the data file only when the incoming one is strictly
	// larger.
	PolicyUpdate DuplicatePolicy = "update"
)

// ParsePolicy validates a policy name from user input.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case PolicySkip, PolicyReplace, PolicyUpdate:
		return DuplicatePolicy(s), nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (want skip, replace or update)", s)
}

// Relocate moves or copies the record's files into destDir and resolves any
// conflict with files already there according to policy.
//
// It returns a successor record stamped with the destination paths and the
// resolved action. With ModeMove the input record's files are consumed; with
// ModeCopy they are untouched and the successor is independent of the input.
// The destination paths are stamped even when the underlying bytes were not
// rewritten, so the index always reflects final locations.
func Relocate(m *Market, destDir string, mode Mode, policy DuplicatePolicy) (*Market, error) {
	metaDest := filepath.Join(destDir, filepath.Base(m.MetadataFile))
	dataDest := filepath.Join(destDir, filepath.Base(m.DataFile))

	action := ActionInsert
	transferMeta := true
	if _, err := os.Stat(metaDest); err == nil {
		switch {
		case policy == PolicyReplace:
			action = ActionUpdate
		case policy == PolicySkip:
			action = ActionSkip
		case metadataUnchanged(m, metaDest):
			// Only differences that reach the index matter. The metadata
			// file stays untouched, but a more complete data file can still
			// turn the record into an update below.
			action = ActionSkip
			transferMeta = false
		default:
			action = ActionUpdate
		}
	}

	result := NewWithMetadata(metaDest, dataDest, m.meta)
	result.Action = action
	if policy == PolicySkip && action == ActionSkip {
		// Neither file is transferred; the data file is not even examined.
		return result, nil
	}

	transferData := true
	if info, err := os.Stat(dataDest); err == nil {
		switch policy {
		case PolicySkip:
			transferData = false
		case PolicyUpdate:
			// Never let a smaller stream file overwrite a more complete one.
			incoming, err := os.Stat(m.DataFile)
			if err != nil {
				return nil, fmt.Errorf("stat data file: %w", err)
			}
			if info.Size() >= incoming.Size() {
				transferData = false
			}
		}
	}
	if action == ActionSkip {
		if !transferData {
			return result, nil
		}
		// Unchanged metadata but a strictly larger incoming data file.
		action = ActionUpdate
		result.Action = action
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}
	if transferMeta {
		if err := transfer(m.MetadataFile, metaDest, mode); err != nil {
			return nil, err
		}
	}
	if transferData {
		if err := transfer(m.DataFile, dataDest, mode); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// metadataUnchanged reports whether the metadata document already at dest
// carries the same indexed content as the incoming record. The comparison is
// over transformed rows with path columns excluded, so cosmetic changes to
// the source document count as unchanged. An unreadable existing document
// counts as changed.
func metadataUnchanged(m *Market, dest string) bool {
	existing, err := ParseFile(dest)
	if err != nil {
		return false
	}
	return m.meta.Row().EqualContent(existing.Row())
}

func transfer(src, dest string, mode Mode) error {
	if mode == ModeCopy {
		return copyFile(src, dest)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copy and remove.
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %q: %w", src, err)
	}
	return out.Close()
}
