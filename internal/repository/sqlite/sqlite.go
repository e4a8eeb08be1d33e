// Package sqlite implements the repository interfaces on an embedded SQLite
// database. Each collection is one table; list-valued fields (follow sets,
// media, comment IDs, course modules) are stored as JSON text columns so a
// row reads and writes like a document.
//
// dbPath examples:
//   - "data/techblogs.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	// Registers the pure-Go "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/techblogs/internal/repository"
)

// compile-time check that *DB is a complete backend
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements every repository.
type DB struct {
	conn *sql.DB
}

// New opens the database, applies pragmas, and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// ":memory:" gives every pooled connection its own empty database,
	// so the pool is pinned to a single connection in that case.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Busy timeout lets concurrent writers wait on the file lock instead of
	// failing immediately with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
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

// migrate creates every table. CREATE ... IF NOT EXISTS keeps it idempotent.
// There are no foreign keys: documents reference each other by ID only and
// deletes do not cascade.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			profile_pic   TEXT NOT NULL DEFAULT '',
			followers     TEXT NOT NULL DEFAULT '[]',
			following     TEXT NOT NULL DEFAULT '[]',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			user_name        TEXT NOT NULL DEFAULT '',
			user_profile_pic TEXT NOT NULL DEFAULT '',
			description      TEXT NOT NULL DEFAULT '',
			media            TEXT NOT NULL DEFAULT '[]',
			comments         TEXT NOT NULL DEFAULT '[]',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			post_id    TEXT NOT NULL,
			user_id    TEXT NOT NULL DEFAULT '',
			user_name  TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating comments table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS courses (
			id                TEXT PRIMARY KEY,
			title             TEXT NOT NULL DEFAULT '',
			description       TEXT NOT NULL DEFAULT '',
			video_url         TEXT NOT NULL DEFAULT '',
			modules           TEXT NOT NULL DEFAULT '[]',
			instructor_name   TEXT NOT NULL DEFAULT '',
			instructor_bio    TEXT NOT NULL DEFAULT '',
			resources         TEXT NOT NULL DEFAULT '[]',
			tags              TEXT NOT NULL DEFAULT '[]',
			duration          TEXT NOT NULL DEFAULT '',
			learning_outcomes TEXT NOT NULL DEFAULT '[]',
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating courses table: %w", err)
	}

	return nil
}

// encodeJSON marshals a list-valued field for storage. A nil slice is stored
// as "[]" so reads always yield a non-nil slice.
func encodeJSON[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON[T any](s string) ([]T, error) {
	out := []T{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rowsAffected is RowsAffected with the driver error wrapped.
func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
