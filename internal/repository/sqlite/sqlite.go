// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// We use modernc.org/sqlite rather than mattn/go-sqlite3: it is a pure Go
// translation of the SQLite sources, so no C compiler is needed and
// cross-compilation stays painless. The blank import below registers the
// driver with database/sql under the name "sqlite".
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces. The server owns it and closes it on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway in-memory database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives inside a single connection; a second
	// pooled connection would see an empty schema. Pin the pool to one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Force an immediate connection — a bad path or permission problem
	// should surface here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight, which a web
	// server needs. Foreign keys are off by default in SQLite; the
	// qr_codes.user_id reference depends on them.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps this
// idempotent, so it is safe on every startup.
//
// Email uniqueness is enforced case-insensitively via a unique index on
// lower(email); emails are additionally stored lowercased so lookups stay
// simple. github_id is nullable — password-only accounts never set it —
// and the partial unique index keeps one account per GitHub identity.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS qr_codes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			target_url TEXT NOT NULL,
			format     TEXT NOT NULL,
			filename   TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_qr_codes_user_id ON qr_codes(user_id);
		CREATE INDEX IF NOT EXISTS idx_qr_codes_created_at ON qr_codes(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating qr_codes table: %w", err)
	}

	return nil
}
