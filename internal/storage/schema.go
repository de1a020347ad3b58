// Package storage provides the SQLite-backed document store for mind maps,
// users, sessions, and template sources.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/mindmaps/internal/apperr"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash BLOB NOT NULL,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	last_login    INTEGER
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS mindmaps (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	nodes       TEXT NOT NULL DEFAULT '[]',
	connections TEXT NOT NULL DEFAULT '[]',
	author      TEXT NOT NULL,
	is_public   INTEGER NOT NULL DEFAULT 0,
	tags        TEXT NOT NULL DEFAULT '[]',
	template    INTEGER NOT NULL DEFAULT 0,
	category    TEXT NOT NULL DEFAULT 'Other',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mindmaps_author ON mindmaps(author, updated_at);
CREATE INDEX IF NOT EXISTS idx_mindmaps_public ON mindmaps(is_public, created_at);
CREATE INDEX IF NOT EXISTS idx_mindmaps_category ON mindmaps(category);

CREATE TABLE IF NOT EXISTS template_sources (
	slug       TEXT PRIMARY KEY,
	path       TEXT NOT NULL DEFAULT '',
	mindmap_id TEXT NOT NULL,
	checksum   TEXT NOT NULL
);
`

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply core schema: %w", err)
	}
	if err := addColumnIfMissing(conn, "template_sources", "path", `TEXT NOT NULL DEFAULT ''`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: migrate template_sources: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// addColumnIfMissing upgrades databases created before column existed.
func addColumnIfMissing(conn *sql.DB, table, column, decl string) error {
	found, err := hasColumn(conn, table, column)
	if err != nil || found {
		return err
	}
	_, err = conn.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + column + ` ` + decl)
	return err
}

func hasColumn(conn *sql.DB, table, column string) (bool, error) {
	rows, err := conn.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return apperr.Transient("storage: ping", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// classify maps driver errors onto the apperr taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w", op, apperr.ErrAlreadyExists)
	}
	return apperr.Transient(op, err)
}
