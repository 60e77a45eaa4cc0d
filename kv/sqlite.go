package kv

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore is a Store backed by a single SQLite database file.
//
// database/sql serializes access per connection; the store additionally runs
// in WAL mode so readers are not blocked by a writer.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) a SQLite-backed store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("kv: %s: %w", p, err)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS kv (
		k BLOB PRIMARY KEY,
		v BLOB NOT NULL
	) WITHOUT ROWID`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put stores value under key, overwriting any previous value.
func (s *SQLiteStore) Put(key, value []byte) error {
	_, err := s.db.Exec("INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v", key, value)
	if err != nil {
		return fmt.Errorf("kv: put: %w", err)
	}
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (s *SQLiteStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT v FROM kv WHERE k = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get: %w", err)
	}
	return value, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(key []byte) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE k = ?", key); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}

// BatchPut stores all items in a single transaction.
func (s *SQLiteStore) BatchPut(items []Item) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("kv: begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.Prepare("INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v")
	if err != nil {
		return fmt.Errorf("kv: prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.Exec(item.Key, item.Value); err != nil {
			return fmt.Errorf("kv: batch put: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kv: commit batch: %w", err)
	}
	return nil
}

// ScanPrefix returns up to limit items whose key starts with prefix.
func (s *SQLiteStore) ScanPrefix(prefix []byte, limit int) ([]Item, error) {
	query := "SELECT k, v FROM kv WHERE k >= ?"
	args := []any{prefix}
	if end := prefixUpperBound(prefix); end != nil {
		query += " AND k < ?"
		args = append(args, end)
	}
	query += " ORDER BY k"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("kv: scan prefix: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Key, &item.Value); err != nil {
			return nil, fmt.Errorf("kv: scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv: scan prefix: %w", err)
	}
	return items, nil
}

// Iterate calls fn for every item in ascending key order.
func (s *SQLiteStore) Iterate(fn func(key, value []byte) error) error {
	rows, err := s.db.Query("SELECT k, v FROM kv ORDER BY k")
	if err != nil {
		return fmt.Errorf("kv: iterate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("kv: iterate row: %w", err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Flush checkpoints the WAL so all committed writes reach the main file.
func (s *SQLiteStore) Flush() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("kv: flush: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
