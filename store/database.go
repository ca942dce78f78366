// Package store provides durable key/value storage for slides and preferences
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	// Create table if it doesn't exist
	if err := database.createTable(); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return database, nil
}

func (d *Database) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (key)
	);
	`
	_, err := d.db.Exec(query)
	return err
}

func (d *Database) Get(key string) (string, bool, error) {
	const query = `SELECT value FROM kv WHERE key = ?`

	var value string
	err := d.db.QueryRow(query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (d *Database) Set(key, value string) error {
	const stmt = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value
	`

	key, err := normalizeKey(key)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if _, err := d.db.Exec(stmt, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (d *Database) Remove(key string) error {
	query := `DELETE FROM kv WHERE key = ?`
	if _, err := d.db.Exec(query, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys starting with prefix, in lexical order.
func (d *Database) Keys(prefix string) ([]string, error) {
	query := `SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key ASC`
	rows, err := d.db.Query(query, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return keys, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// normalizeKey rejects keys that cannot be stored.
func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("empty key")
	}
	return key, nil
}
