package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Records do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
	}
}

// Save implements Store. Records are kept serialized so callers never share state with the store.
func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sessions[rec.SessionID]; ok && rec.CreatedAt == 0 {
		var old Record
		if err := json.Unmarshal(prev, &old); err == nil {
			rec.CreatedAt = old.CreatedAt
		}
	}
	stamp(rec, time.Now())

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	s.sessions[rec.SessionID] = data
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	data, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if err != nil || rec == nil {
			continue
		}
		summaries = append(summaries, summarize(rec))
	}
	return sortAndLimit(summaries, limit), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// CleanupExpired implements Store.
func (s *MemoryStore) CleanupExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, data := range s.sessions {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.UpdatedAt < cutoff.Unix() {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func sortAndLimit(summaries []Summary, limit int) []Summary {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt != summaries[j].UpdatedAt {
			return summaries[i].UpdatedAt > summaries[j].UpdatedAt
		}
		return summaries[i].SessionID < summaries[j].SessionID
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

var _ Store = (*MemoryStore)(nil)
