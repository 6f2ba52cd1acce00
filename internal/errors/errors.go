// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors provides user-facing error types for the bfdb CLI.
//
// A UserError carries a short title, a longer detail line and a suggestion
// for fixing the problem. FatalError prints one and exits with the code
// mapped to the error kind, so every subcommand reports failures the same
// way.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind classifies a UserError and determines the process exit code.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindDatabaseDir
	KindIndexExists
	KindIndexMissing
	KindPermission
	KindDatabase
)

// exitCodes maps error kinds to process exit codes. Zero is never used.
var exitCodes = map[Kind]int{
	KindInternal:     1,
	KindConfig:       2,
	KindDatabaseDir:  3,
	KindIndexExists:  4,
	KindIndexMissing: 5,
	KindPermission:   6,
	KindDatabase:     7,
}

// UserError is an error intended to be shown to the CLI user.
type UserError struct {
	Kind       Kind
	Title      string
	Detail     string
	Suggestion string
	Err        error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *UserError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for this error.
func (e *UserError) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return 1
}

func newError(kind Kind, title, detail, suggestion string, err error) *UserError {
	return &UserError{Kind: kind, Title: title, Detail: detail, Suggestion: suggestion, Err: err}
}

// NewInternalError reports an unexpected failure inside bfdb itself.
func NewInternalError(title, detail, suggestion string, err error) *UserError {
	return newError(KindInternal, title, detail, suggestion, err)
}

// NewConfigError reports a missing or malformed configuration file.
func NewConfigError(title, detail, suggestion string, err error) *UserError {
	return newError(KindConfig, title, detail, suggestion, err)
}

// NewDatabaseDirError reports an invalid database root directory.
func NewDatabaseDirError(title, detail, suggestion string, err error) *UserError {
	return newError(KindDatabaseDir, title, detail, suggestion, err)
}

// NewIndexExistsError reports an attempt to index an already indexed directory.
func NewIndexExistsError(title, detail, suggestion string, err error) *UserError {
	return newError(KindIndexExists, title, detail, suggestion, err)
}

// NewIndexMissingError reports an operation that requires an existing index.
func NewIndexMissingError(title, detail, suggestion string, err error) *UserError {
	return newError(KindIndexMissing, title, detail, suggestion, err)
}

// NewPermissionError reports a filesystem permission or disk-space failure.
func NewPermissionError(title, detail, suggestion string, err error) *UserError {
	return newError(KindPermission, title, detail, suggestion, err)
}

// NewDatabaseError reports a failure in the SQLite index store.
func NewDatabaseError(title, detail, suggestion string, err error) *UserError {
	return newError(KindDatabase, title, detail, suggestion, err)
}

// FatalError prints the error and terminates the process.
//
// In JSON mode the error is emitted as a single JSON object on stdout so
// callers driving bfdb programmatically can parse it. Otherwise a
// human-readable block is written to stderr.
func FatalError(err error, jsonOutput bool) {
	ue, ok := err.(*UserError)
	if !ok {
		ue = NewInternalError("Unexpected error", err.Error(), "", err)
	}

	if jsonOutput {
		payload := map[string]string{
			"error":      ue.Title,
			"detail":     ue.Detail,
			"suggestion": ue.Suggestion,
		}
		if ue.Err != nil {
			payload["cause"] = ue.Err.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(payload)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", ue.Title)
		if ue.Detail != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", ue.Detail)
		}
		if ue.Err != nil {
			fmt.Fprintf(os.Stderr, "  cause: %v\n", ue.Err)
		}
		if ue.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", ue.Suggestion)
		}
	}
	os.Exit(ue.ExitCode())
}
