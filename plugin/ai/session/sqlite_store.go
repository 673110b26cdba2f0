package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// SQLite driver.
	_ "modernc.org/sqlite"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS conversation_session (
		session_id TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_session_updated_ts ON conversation_session (updated_ts)`,
}

// SQLiteStore persists records in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dsn and migrates it.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
	}

	slog.Info("sqlite session store opened", "dsn", dsn)
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	stamp(rec, time.Now())

	data, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	query := `
		INSERT INTO conversation_session (session_id, state, created_ts, updated_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id)
		DO UPDATE SET
			state = excluded.state,
			updated_ts = excluded.updated_ts
	`
	if _, err := s.db.ExecContext(ctx, query, rec.SessionID, string(data), rec.CreatedAt, rec.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	query := `
		SELECT session_id, state, created_ts, updated_ts
		FROM conversation_session
		WHERE session_id = ?
	`

	var (
		rec  Record
		data string
	)
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&rec.SessionID, &data, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
		slog.Warn("failed to unmarshal session state, starting empty", "session_id", sessionID, "error", err)
	}
	return &rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT session_id, state, created_ts, updated_ts
		FROM conversation_session
		ORDER BY updated_ts DESC, session_id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			rec  Record
			data string
		)
		if err := rows.Scan(&rec.SessionID, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			slog.Warn("failed to scan session row", "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
			slog.Warn("failed to unmarshal session state", "session_id", rec.SessionID, "error", err)
		}
		summaries = append(summaries, summarize(&rec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return summaries, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_session WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpired implements Store.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_session WHERE updated_ts < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
