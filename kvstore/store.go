/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package kvstore provides a small durable family/key-value store used to
// persist the public-key cache's bindings across restarts. It mirrors the
// shape the core's persistent-store collaborator is specified against
// (put/get/delete/delete_subtree, keyed by an opaque family name, plus Keys),
// backed by modernc.org/sqlite so the binding survives a process restart
// without requiring cgo or an external database.
package kvstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a durable family/key-value store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and ensures
// its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}

	// A single writer connection avoids SQLITE_BUSY from the database/sql
	// pool trying to open concurrent write transactions against sqlite.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: migrate %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	family TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (family, key)
);
`

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes value under (family, key), overwriting any existing value.
func (s *Store) Put(family, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (family, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (family, key) DO UPDATE SET value = excluded.value`,
		family, key, value)
	if err != nil {
		return fmt.Errorf("kvstore: put %s/%s: %w", family, key, err)
	}
	return nil
}

// Get returns the value stored under (family, key) and whether it was
// present. Callers that want "soft" reads (missing means empty string, never
// an error) should ignore the bool and treat a false ok the same as a "".
func (s *Store) Get(family, key string) (value string, ok bool, err error) {
	row := s.db.QueryRow(`SELECT value FROM kv WHERE family = ? AND key = ?`, family, key)

	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore: get %s/%s: %w", family, key, err)
	}
	return value, true, nil
}

// Delete removes (family, key). Deleting an absent key is not an error.
func (s *Store) Delete(family, key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE family = ? AND key = ?`, family, key)
	if err != nil {
		return fmt.Errorf("kvstore: delete %s/%s: %w", family, key, err)
	}
	return nil
}

// DeleteSubtree removes every key in family. Deleting an absent family is
// not an error.
func (s *Store) DeleteSubtree(family string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE family = ?`, family)
	if err != nil {
		return fmt.Errorf("kvstore: delete subtree %s: %w", family, err)
	}
	return nil
}

// Keys returns every key currently stored in family, in no particular order.
// Used to enumerate known URLs for admin and LRU-seeding purposes.
func (s *Store) Keys(family string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv WHERE family = ?`, family)
	if err != nil {
		return nil, fmt.Errorf("kvstore: keys %s: %w", family, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("kvstore: keys %s: %w", family, err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
