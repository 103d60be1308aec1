// Package memory provides SQLite-backed long-term storage: a write-behind
// mirror of session history plus a key/value fact store the model can use
// through tools. The in-process session store stays authoritative during a
// run; this store is its durable copy and warm-start source.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/ferroclaw/ferroclaw/pkg/session"
)

// ErrFactNotFound is returned when a fact key does not exist.
var ErrFactNotFound = errors.New("fact not found")

// Fact is one remembered key/value pair.
type Fact struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store is a SQLite archive of history and facts. Safe for concurrent use;
// SQLite serializes writes.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open creates or opens the database at path and migrates the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate memory schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL,
		role         TEXT NOT NULL,
		content      TEXT NOT NULL,
		tool_name    TEXT,
		tool_call_id TEXT,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_session ON history(session_id, id);

	CREATE TABLE IF NOT EXISTS facts (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append mirrors one message into the history table.
func (s *Store) Append(ctx context.Context, sessionID string, msg session.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (session_id, role, content, tool_name, tool_call_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(msg.Role), msg.Content, msg.ToolName, msg.ToolCallID,
		msg.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// Recent returns the last limit messages of a session in chronological order.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]session.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_name, tool_call_id, created_at
		 FROM history WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []session.Message
	for rows.Next() {
		var msg session.Message
		var role, createdAt string
		if err := rows.Scan(&role, &msg.Content, &msg.ToolName, &msg.ToolCallID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		msg.Role = session.Role(role)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			msg.Timestamp = ts
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	// Newest-first from the query, oldest-first for callers.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SaveFact stores or replaces a fact.
func (s *Store) SaveFact(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("fact key cannot be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save fact: %w", err)
	}
	return nil
}

// GetFact returns one fact by exact key.
func (s *Store) GetFact(ctx context.Context, key string) (Fact, error) {
	var fact Fact
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM facts WHERE key = ?`, key,
	).Scan(&fact.Key, &fact.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Fact{}, fmt.Errorf("%w: %s", ErrFactNotFound, key)
	}
	if err != nil {
		return Fact{}, fmt.Errorf("failed to get fact: %w", err)
	}
	if ts, perr := time.Parse(time.RFC3339Nano, updatedAt); perr == nil {
		fact.UpdatedAt = ts
	}
	return fact, nil
}

// SearchFacts returns facts whose key or value contains the query substring.
func (s *Store) SearchFacts(ctx context.Context, query string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM facts
		 WHERE key LIKE ? OR value LIKE ?
		 ORDER BY key LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var fact Fact
		var updatedAt string
		if err := rows.Scan(&fact.Key, &fact.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact row: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339Nano, updatedAt); perr == nil {
			fact.UpdatedAt = ts
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}

// DeleteFact removes a fact. Deleting a missing key is not an error.
func (s *Store) DeleteFact(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}
	return nil
}
