package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/chatops/plugin/ai"
	"github.com/hrygo/chatops/plugin/ai/memory"
	"github.com/hrygo/chatops/plugin/ai/tokenizer"
)

var (
	// ErrSessionNotFound indicates no live or persisted session has the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionID indicates a malformed session id.
	ErrInvalidSessionID = errors.New("invalid session id")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NewID allocates a session id.
func NewID() string {
	return shortuuid.New()
}

// ValidateID checks that id is usable as a session id.
func ValidateID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// Config holds session management settings.
type Config struct {
	Memory memory.Config
	// IdleTTL evicts sessions from process memory after this long without a turn.
	IdleTTL time.Duration
	// CleanupInterval is how often the janitor runs.
	CleanupInterval time.Duration
	// Retention deletes persisted sessions not updated for this long. Zero keeps them.
	Retention time.Duration
}

// Info describes the current state of a session.
type Info struct {
	SessionID   string       `json:"session_id"`
	Summary     string       `json:"summary"`
	History     []ai.Message `json:"history"`
	TokenCount  int          `json:"token_count"`
	TokenBudget int          `json:"token_budget"`
	Compactions int          `json:"compactions"`
}

type entry struct {
	// sem serializes turns of one session.
	sem     chan struct{}
	mem     *memory.ConversationMemory
	loaded  bool
	created int64

	// Guarded by Manager.mu.
	lastUsed time.Time
	refs     int
}

func (e *entry) lock(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) unlock() {
	<-e.sem
}

// Manager owns one ConversationMemory per session id.
// Turns of the same session run one at a time; different sessions run concurrently.
type Manager struct {
	store      Store
	tokenizer  tokenizer.Tokenizer
	summarizer memory.Summarizer
	cfg        Config
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager creates a session manager.
func NewManager(store Store, tk tokenizer.Tokenizer, summarizer memory.Summarizer, cfg Config) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store:      store,
		tokenizer:  tk,
		summarizer: summarizer,
		cfg:        cfg,
		now:        time.Now,
		sessions:   make(map[string]*entry),
	}
}

// Do runs fn with the memory of session id, waiting for any turn already in
// progress on that session. The session is created on first use and persisted
// after fn succeeds.
func (m *Manager) Do(ctx context.Context, id string, fn func(ctx context.Context, mem *memory.ConversationMemory) error) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	e := m.acquire(id)
	defer m.release(e)

	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()

	if err := m.load(ctx, id, e); err != nil {
		return err
	}

	if err := fn(ctx, e.mem); err != nil {
		return err
	}

	m.persist(ctx, id, e)
	return nil
}

// Inspect returns the state of a live or persisted session.
func (m *Manager) Inspect(ctx context.Context, id string) (*Info, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	e, live := m.sessions[id]
	if live {
		e.refs++
	}
	m.mu.Unlock()

	if live {
		defer m.release(e)
		if err := e.lock(ctx); err != nil {
			return nil, err
		}
		defer e.unlock()
		if err := m.load(ctx, id, e); err != nil {
			return nil, err
		}
		return newInfo(id, e.mem), nil
	}

	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}
	mem := m.newMemory()
	mem.Restore(rec.State)
	return newInfo(id, mem), nil
}

// List returns persisted sessions, most recently updated first.
func (m *Manager) List(ctx context.Context, limit int) ([]Summary, error) {
	return m.store.List(ctx, limit)
}

// Reset clears the memory of a session and deletes its persisted state.
func (m *Manager) Reset(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	e, live := m.sessions[id]
	if live {
		e.refs++
	}
	m.mu.Unlock()

	if live {
		defer m.release(e)
		if err := e.lock(ctx); err != nil {
			return err
		}
		defer e.unlock()
		e.mem.Clear()
		e.loaded = true
		e.created = 0
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	slog.Info("session reset", "session_id", id)
	return nil
}

// Len returns the number of sessions held in process memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

func (m *Manager) newMemory() *memory.ConversationMemory {
	return memory.NewConversationMemory(m.tokenizer, m.summarizer, m.cfg.Memory)
}

func (m *Manager) acquire(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		e = &entry{
			sem: make(chan struct{}, 1),
			mem: m.newMemory(),
		}
		m.sessions[id] = e
	}
	e.refs++
	e.lastUsed = m.now()
	return e
}

func (m *Manager) release(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	e.lastUsed = m.now()
}

// load restores persisted state the first time a live entry is used.
// Must be called with the entry locked.
func (m *Manager) load(ctx context.Context, id string, e *entry) error {
	if e.loaded {
		return nil
	}
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if rec != nil {
		e.mem.Restore(rec.State)
		e.created = rec.CreatedAt
	}
	e.loaded = true
	return nil
}

// persist saves the entry. The turn already succeeded, so failures are only logged.
// Must be called with the entry locked.
func (m *Manager) persist(ctx context.Context, id string, e *entry) {
	rec := &Record{
		SessionID: id,
		State:     e.mem.State(),
		CreatedAt: e.created,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		slog.Warn("failed to persist session", "session_id", id, "error", err)
		return
	}
	e.created = rec.CreatedAt
}

func newInfo(id string, mem *memory.ConversationMemory) *Info {
	return &Info{
		SessionID:   id,
		Summary:     mem.Summary(),
		History:     mem.Snapshot(),
		TokenCount:  mem.TokenCount(),
		TokenBudget: mem.Budget(),
		Compactions: mem.Compactions(),
	}
}
