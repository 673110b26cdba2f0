// Package memory provides the token-bounded conversation memory for AI agents.
// History is kept verbatim until the token budget would be exceeded, then it is
// collapsed into a running summary that is carried forward.
package memory

import (
	"context"
	"errors"

	"github.com/hrygo/chatops/plugin/ai"
)

// ErrEmptySummary is returned when the summarizer produced no digest.
var ErrEmptySummary = errors.New("summarizer returned an empty digest")

// Summarizer compresses conversation text into a short digest.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// State is the persistable form of a ConversationMemory.
type State struct {
	History    []ai.Message `json:"history"`
	Summary    string       `json:"summary"`
	TokenCount int          `json:"token_count"`
}
