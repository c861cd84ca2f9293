// Package store is the persistent gateway for all Cadence state: chat
// history, the heartbeat task queue, agent memories, the cost ledger,
// and the read-only context tables (directives, identity, session logs).
// Backed by a single SQLite database; SQLite serializes writes, so all
// public methods are safe for concurrent use.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the Cadence database.
type Store struct {
	db *sql.DB
}

// Open creates a store at the given database path. The schema is
// created automatically on first use.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		tokens_in  INTEGER,
		tokens_out INTEGER,
		model_used TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);

	CREATE TABLE IF NOT EXISTS heartbeat (
		id                 TEXT PRIMARY KEY,
		task               TEXT NOT NULL,
		description        TEXT,
		category           TEXT NOT NULL,
		priority           INTEGER NOT NULL,
		status             TEXT NOT NULL,
		result             TEXT,
		created_by_session TEXT,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL,
		completed_at       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_heartbeat_status ON heartbeat(status, priority);

	CREATE TABLE IF NOT EXISTS memories (
		key            TEXT PRIMARY KEY,
		content        TEXT NOT NULL,
		memory_type    TEXT NOT NULL,
		importance     INTEGER NOT NULL,
		tags           TEXT NOT NULL DEFAULT '[]',
		source_session TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);

	CREATE TABLE IF NOT EXISTS cost_log (
		id            TEXT PRIMARY KEY,
		session_date  TEXT NOT NULL,
		model_used    TEXT NOT NULL,
		tokens_input  INTEGER NOT NULL,
		tokens_output INTEGER NOT NULL,
		cost_usd      REAL NOT NULL,
		task_type     TEXT NOT NULL,
		source        TEXT NOT NULL,
		notes         TEXT,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cost_date ON cost_log(session_date);

	CREATE TABLE IF NOT EXISTS directives (
		id         TEXT PRIMARY KEY,
		directive  TEXT NOT NULL,
		category   TEXT NOT NULL,
		priority   INTEGER NOT NULL,
		active     INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS identity (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		category   TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_logs (
		id         TEXT PRIMARY KEY,
		summary    TEXT NOT NULL,
		log_date   TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
