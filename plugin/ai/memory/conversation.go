package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hrygo/chatops/plugin/ai"
	"github.com/hrygo/chatops/plugin/ai/tokenizer"
)

// DefaultTokenBudget is used when Config.TokenBudget is not positive.
const DefaultTokenBudget = 500

// Config holds conversation memory limits.
type Config struct {
	// TokenBudget is the maximum token cost of summary plus history before compaction.
	TokenBudget int
	// SummaryTokenCap re-summarizes the running summary once it costs more than this.
	// Zero keeps the summary append-only.
	SummaryTokenCap int
}

// ConversationMemory is the rolling history of one conversation.
//
// The invariant TokenCount() == tokenizer.Count(Text()) holds after every mutation.
// Messages are never removed one by one: compaction clears the whole history.
// Callers must not run overlapping turns against one instance; the mutex only
// keeps individual calls consistent.
type ConversationMemory struct {
	mu sync.Mutex

	tokenizer  tokenizer.Tokenizer
	summarizer Summarizer
	budget     int
	summaryCap int

	history     []ai.Message
	summary     string
	tokenCount  int
	compactions int
}

// NewConversationMemory creates an empty conversation memory.
func NewConversationMemory(tk tokenizer.Tokenizer, summarizer Summarizer, cfg Config) *ConversationMemory {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	if tk == nil {
		tk = tokenizer.Estimator{}
	}
	return &ConversationMemory{
		tokenizer:  tk,
		summarizer: summarizer,
		budget:     cfg.TokenBudget,
		summaryCap: cfg.SummaryTokenCap,
		history:    make([]ai.Message, 0),
	}
}

// Append adds a message to the history, compacting first when the message
// would push the conversation over the token budget.
//
// Empty content is logged and ignored. If compaction fails the state is left
// untouched and the error is returned.
func (m *ConversationMemory) Append(ctx context.Context, role ai.Role, content string) error {
	if content == "" {
		slog.Warn("ignoring message with empty content", "role", role)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.appendLocked(ctx, role, content)
}

// AppendTurn records a query and its answer as one unit. If either append
// fails, the memory is restored to its state before the call and the error is
// returned, so a turn is never recorded half-way.
func (m *ConversationMemory) AppendTurn(ctx context.Context, query, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.checkpoint()
	for _, msg := range []ai.Message{
		{Role: ai.RoleUser, Content: query},
		{Role: ai.RoleAssistant, Content: answer},
	} {
		if msg.Content == "" {
			slog.Warn("ignoring message with empty content", "role", msg.Role)
			continue
		}
		if err := m.appendLocked(ctx, msg.Role, msg.Content); err != nil {
			m.rollback(saved)
			return err
		}
	}
	return nil
}

type checkpoint struct {
	history     []ai.Message
	summary     string
	tokenCount  int
	compactions int
}

// checkpoint and rollback must be called with mu held.
func (m *ConversationMemory) checkpoint() checkpoint {
	history := make([]ai.Message, len(m.history))
	copy(history, m.history)
	return checkpoint{
		history:     history,
		summary:     m.summary,
		tokenCount:  m.tokenCount,
		compactions: m.compactions,
	}
}

func (m *ConversationMemory) rollback(c checkpoint) {
	m.history = c.history
	m.summary = c.summary
	m.tokenCount = c.tokenCount
	m.compactions = c.compactions
}

// appendLocked must be called with mu held.
func (m *ConversationMemory) appendLocked(ctx context.Context, role ai.Role, content string) error {
	cost := m.tokenizer.Count(content)
	if m.tokenCount+cost > m.budget {
		if err := m.compact(ctx); err != nil {
			return err
		}
	}

	m.history = append(m.history, ai.Message{Role: role, Content: content})
	m.tokenCount = m.tokenizer.Count(m.text())

	if m.tokenCount > m.budget {
		// A single oversized message is kept whole; the next append compacts it.
		slog.Debug("conversation over budget after append",
			"token_count", m.tokenCount,
			"token_budget", m.budget)
	}
	return nil
}

// compact collapses the history into a digest appended to the running summary.
// Must be called with mu held.
func (m *ConversationMemory) compact(ctx context.Context) error {
	if len(m.history) == 0 {
		return nil
	}
	if m.summarizer == nil {
		return fmt.Errorf("conversation exceeds %d tokens and no summarizer is configured", m.budget)
	}

	before := m.tokenCount
	digest, err := m.summarizer.Summarize(ctx, m.text())
	if err != nil {
		return fmt.Errorf("failed to summarize conversation: %w", err)
	}
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return ErrEmptySummary
	}

	if m.summary == "" {
		m.summary = digest
	} else {
		m.summary = m.summary + " " + digest
	}
	m.history = make([]ai.Message, 0)
	m.tokenCount = m.tokenizer.Count(m.summary)
	m.compactions++

	if m.summaryCap > 0 && m.tokenCount > m.summaryCap {
		m.condenseSummary(ctx)
	}

	slog.Info("conversation compacted",
		"tokens_before", before,
		"tokens_after", m.tokenCount,
		"compactions", m.compactions)
	return nil
}

// condenseSummary replaces an oversized running summary with a digest of itself.
// Failures keep the longer summary. Must be called with mu held.
func (m *ConversationMemory) condenseSummary(ctx context.Context) {
	digest, err := m.summarizer.Summarize(ctx, m.summary)
	if err != nil || strings.TrimSpace(digest) == "" {
		slog.Warn("failed to condense running summary, keeping it",
			"summary_tokens", m.tokenCount,
			"error", err)
		return
	}
	m.summary = strings.TrimSpace(digest)
	m.tokenCount = m.tokenizer.Count(m.summary)
}

// Text returns the running summary followed by every history message, space-joined.
func (m *ConversationMemory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text()
}

func (m *ConversationMemory) text() string {
	parts := make([]string, 0, len(m.history)+1)
	if m.summary != "" {
		parts = append(parts, m.summary)
	}
	for _, msg := range m.history {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, " ")
}

// Snapshot returns a copy of the raw history, without the summary.
func (m *ConversationMemory) Snapshot() []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ai.Message, len(m.history))
	copy(result, m.history)
	return result
}

// Summary returns the running summary.
func (m *ConversationMemory) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// TokenCount returns the token cost of Text().
func (m *ConversationMemory) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenCount
}

// Compactions returns how many times the history has been collapsed.
func (m *ConversationMemory) Compactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compactions
}

// Budget returns the token budget.
func (m *ConversationMemory) Budget() int {
	return m.budget
}

// Clear empties the history and the running summary.
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = make([]ai.Message, 0)
	m.summary = ""
	m.tokenCount = 0
}

// State exports the memory for persistence.
func (m *ConversationMemory) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]ai.Message, len(m.history))
	copy(history, m.history)
	return State{
		History:    history,
		Summary:    m.summary,
		TokenCount: m.tokenCount,
	}
}

// Restore replaces the memory with a persisted state. The token count is
// recomputed, so a state saved under another tokenizer stays consistent.
func (m *ConversationMemory) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = make([]ai.Message, 0, len(s.History))
	for _, msg := range s.History {
		if msg.Content == "" {
			continue
		}
		m.history = append(m.history, ai.Message{Role: msg.Role, Content: msg.Content, Name: msg.Name})
	}
	m.summary = s.Summary
	m.tokenCount = m.tokenizer.Count(m.text())
}
