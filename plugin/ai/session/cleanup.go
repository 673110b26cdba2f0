package session

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultIdleTTL is how long an unused session stays in process memory.
	DefaultIdleTTL = time.Hour
	// DefaultCleanupInterval is the default interval between cleanup runs.
	DefaultCleanupInterval = 5 * time.Minute
)

// CleanupResult reports what a cleanup run removed.
type CleanupResult struct {
	Evicted int
	Expired int64
}

// Run evicts idle sessions and purges expired persisted sessions every
// CleanupInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("session cleanup started",
		"interval", interval,
		"idle_ttl", m.idleTTL(),
		"retention", m.cfg.Retention)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session cleanup stopped")
			return nil
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cleanup run immediately.
func (m *Manager) RunOnce(ctx context.Context) CleanupResult {
	result := CleanupResult{Evicted: m.EvictIdle()}

	if m.cfg.Retention > 0 {
		expired, err := m.store.CleanupExpired(ctx, m.now().Add(-m.cfg.Retention))
		if err != nil {
			slog.Error("session cleanup failed", "error", err)
		}
		result.Expired = expired
	}

	if result.Evicted > 0 || result.Expired > 0 {
		slog.Info("session cleanup completed",
			"evicted", result.Evicted,
			"expired", result.Expired,
			"live", m.Len())
	}
	return result
}

// EvictIdle drops sessions unused for longer than the idle TTL from process
// memory. Their persisted state is kept and reloaded on next use.
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.idleTTL())

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.sessions {
		if e.refs == 0 && e.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (m *Manager) idleTTL() time.Duration {
	if m.cfg.IdleTTL <= 0 {
		return DefaultIdleTTL
	}
	return m.cfg.IdleTTL
}
