// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage owns the persisted index: a single SQLite file inside the
// database root directory, holding one table with the fixed market schema.
//
// All writes of one top-level operation go through a single transaction, so
// an interrupted run leaves either the pre-operation or the fully updated
// index, never a partial write. File moves on disk are not covered by that
// transaction; a crash between a move and the commit is a known, accepted
// inconsistency window that clean() reconciles.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oddsworks/bfdb/pkg/market"
	_ "modernc.org/sqlite"
)

// IndexFilename is the fixed name of the index file inside the root dir.
const IndexFilename = ".betfairdatabaseindex"

const tableName = "BetfairDatabaseIndex"

var (
	// ErrIndexExists reports an attempt to create an index where one exists.
	ErrIndexExists = errors.New("database index already exists")
	// ErrIndexMissing reports an operation requiring an index that is absent.
	ErrIndexMissing = errors.New("database index not found")
)

// IndexPath returns the expected location of the index for a database dir.
func IndexPath(databaseDir string) string {
	return filepath.Join(databaseDir, IndexFilename)
}

// Exists reports whether a database index is present in the directory.
func Exists(databaseDir string) bool {
	_, err := os.Stat(IndexPath(databaseDir))
	return err == nil
}

// Store is a handle on one database index. It holds a single connection;
// the index supports one writer at a time.
type Store struct {
	db   *sql.DB
	path string
}

// Create builds a fresh index in databaseDir, failing with ErrIndexExists
// when one is already present unless force is set, in which case the old
// index file is removed first.
func Create(databaseDir string, force bool) (*Store, error) {
	path := IndexPath(databaseDir)
	if _, err := os.Stat(path); err == nil {
		if !force {
			return nil, fmt.Errorf("%w in %q", ErrIndexExists, databaseDir)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove existing index: %w", err)
		}
	}
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := s.createTable(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens the existing index in databaseDir, failing with
// ErrIndexMissing when there is none.
func Open(databaseDir string) (*Store, error) {
	path := IndexPath(databaseDir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w in %q", ErrIndexMissing, databaseDir)
	}
	return open(path)
}

func open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTable() error {
	cols := market.Columns
	unique := strings.Join(cols[len(cols)-2:], ",")
	stmt := fmt.Sprintf("CREATE TABLE %s(%s, UNIQUE(%s))",
		tableName, strings.Join(cols, ","), unique)
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create index table: %w", err)
	}
	return nil
}

// Tx is one write transaction over the index. Every mutation of a run goes
// through the same Tx and becomes visible atomically on Commit.
type Tx struct {
	tx *sql.Tx
}

// Begin starts the write transaction for a top-level operation.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Insert appends one row. Inserting a (metadata path, data path) pair that
// is already present violates the uniqueness constraint; callers updating a
// record must call DeleteByMetadataPath first.
func (t *Tx) Insert(row market.FlatRow) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(market.Columns)), ",")
	stmt := fmt.Sprintf("INSERT INTO %s VALUES (%s)", tableName, placeholders)
	if _, err := t.tx.Exec(stmt, row.Values()...); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

// DeleteByMetadataPath removes the row indexed under the given metadata file
// path. Row updates are implemented as delete followed by reinsert; partial
// column updates are not supported.
func (t *Tx) DeleteByMetadataPath(path string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", tableName, market.ColMetadataFilePath)
	if _, err := t.tx.Exec(stmt, path); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

// Commit makes the transaction's writes durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit.
func (t *Tx) Rollback() {
	_ = t.tx.Rollback()
}

// Count returns the number of indexed entries.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// RemoveOrphans deletes every row whose data file no longer exists on disk
// and returns the number of removed rows. This reconciles file deletions
// performed outside the tool without a full reindex.
//
// The scan marks stale rows by nulling their data file path column, then
// deletes all null-path rows, all within one transaction.
func (s *Store) RemoveOrphans(onProgress func(current, total int64)) (int, error) {
	total, err := s.Count()
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.Query(fmt.Sprintf("SELECT rowid, %s FROM %s", market.ColDataFilePath, tableName))
	if err != nil {
		return 0, fmt.Errorf("scan rows: %w", err)
	}

	var stale []int64
	var current int64
	for rows.Next() {
		var rowid int64
		var dataPath sql.NullString
		if err := rows.Scan(&rowid, &dataPath); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan row: %w", err)
		}
		current++
		if onProgress != nil {
			onProgress(current, int64(total))
		}
		if !dataPath.Valid {
			stale = append(stale, rowid)
			continue
		}
		if _, err := os.Stat(dataPath.String); err != nil {
			stale = append(stale, rowid)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("scan rows: %w", err)
	}
	rows.Close()

	for _, rowid := range stale {
		stmt := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE rowid = ?", tableName, market.ColDataFilePath)
		if _, err := tx.Exec(stmt, rowid); err != nil {
			return 0, fmt.Errorf("mark orphan row: %w", err)
		}
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s IS NULL", tableName, market.ColDataFilePath)
	if _, err := tx.Exec(stmt); err != nil {
		return 0, fmt.Errorf("delete orphan rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(stale), nil
}

// SelectOptions narrows a Select query. Zero values mean "no restriction".
type SelectOptions struct {
	// Columns to return, in order. Empty selects the full schema.
	Columns []string
	// Where is a raw SQL predicate appended to the query.
	Where string
	// Limit caps the number of returned rows when positive.
	Limit int
}

// Select runs a read query over the index and materializes the result.
// Returns the effective column list and one value slice per row.
func (s *Store) Select(opts SelectOptions) ([]string, [][]any, error) {
	cols := opts.Columns
	if len(cols) == 0 {
		cols = market.Columns
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ","), tableName)
	if opts.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", opts.Where)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}

	rows, err := s.db.Query(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("select: %w", err)
	}
	return cols, out, nil
}
