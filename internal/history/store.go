// Package history implements the SQLite-backed command audit log. Every
// executed or failed command is recorded with its reply, outcome and
// timing, and can be queried from the console or the HTTP gateway.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/rconsole-project/rconsole/internal/events"
)

// Entry is one recorded command exchange.
type Entry struct {
	ID         int64     `json:"id"`
	Server     string    `json:"server"`
	Command    string    `json:"command"`
	Reply      string    `json:"reply,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	ExecutedAt time.Time `json:"executed_at"`
}

// OK reports whether the command completed without error.
func (e Entry) OK() bool {
	return e.Error == ""
}

// Store is the audit log backed by a single SQLite file.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewStore opens or creates the history database at the given path.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("history database opened")
	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS command_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server TEXT NOT NULL,
			command TEXT NOT NULL,
			reply TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			executed_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_server ON command_history(server);
		CREATE INDEX IF NOT EXISTS idx_history_executed_at ON command_history(executed_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("history schema migrated")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one command exchange.
func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	executedAt := e.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO command_history (server, command, reply, error, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Server, e.Command, e.Reply, e.Error, e.DurationMs, executedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, server, command, reply, error, duration_ms, executed_at
		 FROM command_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Search returns entries whose command contains the given substring,
// newest first.
func (s *Store) Search(term string, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, server, command, reply, error, duration_ms, executed_at
		 FROM command_history
		 WHERE command LIKE ?
		 ORDER BY id DESC LIMIT ?`,
		"%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the total number of recorded entries.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM command_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// Prune deletes entries older than the retention window. Returns how
// many rows were removed.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.Exec(`DELETE FROM command_history WHERE executed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	removed, _ := res.RowsAffected()
	if removed > 0 {
		log.Info().Int64("removed", removed).Msg("pruned old history entries")
	}
	return removed, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Server, &e.Command, &e.Reply, &e.Error, &e.DurationMs, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Attach subscribes the store to command events so every exchange is
// recorded as it happens.
func (s *Store) Attach(bus *events.Bus) {
	record := func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.CommandPayload)
		if !ok {
			return nil
		}
		return s.Append(Entry{
			Server:     payload.Address,
			Command:    payload.Command,
			Reply:      payload.Reply,
			Error:      payload.Error,
			DurationMs: payload.Duration.Milliseconds(),
		})
	}

	bus.Subscribe(events.EventCommandExecuted, "history", record)
	bus.Subscribe(events.EventCommandFailed, "history", record)
}
