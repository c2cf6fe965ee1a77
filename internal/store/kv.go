package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by KV.Get when the key has no value.
var ErrNotFound = errors.New("store: key not found")

// KV is a small durable key/value table. It plays the role browser local
// storage plays for the widget: a place for values that must survive restarts.
type KV struct {
	db *DB
}

// NewKV creates a key/value store using the given database.
func NewKV(db *DB) *KV {
	return &KV{db: db}
}

// Get returns the value stored under key, or ErrNotFound.
func (k *KV) Get(key string) (string, error) {
	var value string
	err := k.db.sql.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces the value stored under key.
func (k *KV) Set(key, value string) error {
	now := time.Now().UTC().Format(time.DateTime)
	_, err := k.db.sql.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (k *KV) Delete(key string) error {
	_, err := k.db.sql.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Keys lists every stored key in sorted order.
func (k *KV) Keys() ([]string, error) {
	rows, err := k.db.sql.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
