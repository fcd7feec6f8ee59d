// Package sqlite persists player saves in a local SQLite database.
// Pure Go driver (modernc.org/sqlite), no cgo.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "idlebit.db"

// DB wraps the database handle.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database in dir and applies migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	sqlDB, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer; the game loop is the only caller that saves.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per string.
func Migrations() []string {
	return []string{
		// Current save: a single row.
		`CREATE TABLE IF NOT EXISTS save_slot (
			slot     INTEGER PRIMARY KEY CHECK (slot = 0),
			version  INTEGER NOT NULL,
			blob     BLOB NOT NULL,
			digest   TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)`,

		// Rolling history of previous saves
		`CREATE TABLE IF NOT EXISTS save_history (
			id         TEXT PRIMARY KEY,
			version    INTEGER NOT NULL,
			blob       BLOB NOT NULL,
			digest     TEXT NOT NULL,
			total_bits REAL NOT NULL DEFAULT 0,
			saved_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_save_history_saved ON save_history(saved_at)`,
	}
}
