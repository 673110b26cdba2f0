// Package session keeps one conversation memory per chat session, runs turns of
// a session strictly one after another and persists memory between turns.
package session

import (
	"context"
	"time"

	"github.com/hrygo/chatops/plugin/ai/memory"
)

// Record is the persisted form of a session.
type Record struct {
	SessionID string       `json:"session_id"`
	State     memory.State `json:"state"`
	CreatedAt int64        `json:"created_at"`
	UpdatedAt int64        `json:"updated_at"`
}

// Summary is a short listing entry for a session.
type Summary struct {
	SessionID   string `json:"session_id"`
	LastMessage string `json:"last_message"`
	TokenCount  int    `json:"token_count"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Store persists session records.
type Store interface {
	// Save upserts rec, setting CreatedAt when zero and UpdatedAt to now.
	Save(ctx context.Context, rec *Record) error

	// Load returns the record for sessionID, or nil when there is none.
	Load(ctx context.Context, sessionID string) (*Record, error)

	// List returns up to limit sessions, most recently updated first.
	List(ctx context.Context, limit int) ([]Summary, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// CleanupExpired removes sessions last updated before cutoff.
	CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

func summarize(rec *Record) Summary {
	s := Summary{
		SessionID:  rec.SessionID,
		TokenCount: rec.State.TokenCount,
		UpdatedAt:  rec.UpdatedAt,
	}
	if n := len(rec.State.History); n > 0 {
		s.LastMessage = rec.State.History[n-1].Content
	}
	return s
}

func stamp(rec *Record, now time.Time) {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now.Unix()
	}
	rec.UpdatedAt = now.Unix()
}
