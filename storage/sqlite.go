// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package storage persists Runtime store snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slvr-lang/slvr"
	"github.com/slvr-lang/slvr/encoder"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrSnapshotNotFound is returned for unknown snapshot names.
var ErrSnapshotNotFound = &slvr.Error{Name: "SnapshotNotFoundError"}

const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		entries INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_entries (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (snapshot, key)
	);
`

// SnapshotInfo describes a saved snapshot.
type SnapshotInfo struct {
	Name      string
	Entries   int
	CreatedAt time.Time
}

// SQLiteStore saves named snapshots. Values are stored with the binary value
// codec of the encoder package.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*SQLiteStore, error) {
	connStr := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		connStr = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a new database
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot tables: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores snap under name, replacing a previous snapshot with
// the same name.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, name string,
	snap slvr.Snapshot) (err error) {

	if name == "" {
		return slvr.ErrInvalidArgument.NewError("empty snapshot name")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM snapshot_entries WHERE snapshot = ?`, name); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, created_at, entries)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			created_at = excluded.created_at,
			entries = excluded.entries
	`, name, s.now().UnixNano(), len(snap)); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_entries (snapshot, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range snap {
		var data []byte
		if data, err = encoder.MarshalValue(e.Value); err != nil {
			return fmt.Errorf("failed to encode %q: %w", e.Key, err)
		}
		if _, err = stmt.ExecContext(ctx, name, e.Key, data); err != nil {
			return fmt.Errorf("failed to store %q: %w", e.Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot saved under name sorted by key.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, name string) (slvr.Snapshot, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT entries FROM snapshots WHERE name = ?`, name).Scan(&n)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound.NewError(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM snapshot_entries
		WHERE snapshot = ? ORDER BY key`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot entries: %w", err)
	}
	defer rows.Close()

	snap := make(slvr.Snapshot, 0, n)
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot entry: %w", err)
		}
		v, err := encoder.UnmarshalValue(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", key, err)
		}
		snap = append(snap, slvr.Entry{Key: key, Value: v})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot entries: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns the saved snapshots ordered by name.
func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, entries, created_at FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var results []SnapshotInfo
	for rows.Next() {
		var (
			info    SnapshotInfo
			created int64
		)
		if err := rows.Scan(&info.Name, &info.Entries, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		info.CreatedAt = time.Unix(0, created)
		results = append(results, info)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return results, nil
}

// DeleteSnapshot removes the snapshot saved under name.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, name string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM snapshot_entries WHERE snapshot = ?`, name); err != nil {
		return fmt.Errorf("failed to remove snapshot entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrSnapshotNotFound.NewError(name)
		return
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SaveRuntime saves the store of rt under name.
func (s *SQLiteStore) SaveRuntime(ctx context.Context, name string, rt *slvr.Runtime) error {
	return s.SaveSnapshot(ctx, name, rt.Snapshot())
}

// LoadRuntime replaces the store of rt with the snapshot saved under name.
// A missing snapshot leaves rt unchanged and returns false.
func (s *SQLiteStore) LoadRuntime(ctx context.Context, name string,
	rt *slvr.Runtime) (bool, error) {

	snap, err := s.LoadSnapshot(ctx, name)
	if errors.Is(err, ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	rt.Restore(snap)
	return true, nil
}
