// Package tokenizer counts model tokens for conversation budgeting.
package tokenizer

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when the model has no known tiktoken encoding.
const DefaultEncoding = "cl100k_base"

// Tokenizer reports how many model tokens a string costs.
// Count must be deterministic, return 0 for "" and never decrease when text is appended.
type Tokenizer interface {
	Count(text string) int
}

// Func adapts a plain function to Tokenizer.
type Func func(text string) int

// Count implements Tokenizer.
func (f Func) Count(text string) int {
	return f(text)
}

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding for model, falling back to DefaultEncoding for
// models tiktoken does not know (e.g. OpenAI-compatible third party models).
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, err
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// Count implements Tokenizer.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Estimator approximates token cost at ~4 bytes per token.
// Good enough for threshold comparison, not billing-accurate.
type Estimator struct{}

// Count implements Tokenizer.
func (Estimator) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Round up: (len + 3) / 4
	return (len(text) + 3) / 4
}

// Words counts whitespace separated words. Useful where a predictable cost is needed.
var Words = Func(func(text string) int {
	return len(strings.Fields(text))
})

// New returns a tiktoken tokenizer for model, or the Estimator when the
// encoding cannot be loaded (tiktoken fetches BPE ranks on first use).
func New(model string) Tokenizer {
	tk, err := NewTiktoken(model)
	if err != nil {
		slog.Warn("tiktoken encoding unavailable, using estimator",
			"model", model,
			"error", err)
		return Estimator{}
	}
	return tk
}
