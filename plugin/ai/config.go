package ai

import (
	"errors"

	"github.com/hrygo/chatops/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	LLM    LLMConfig
	Memory MemoryConfig
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // openai, deepseek, ollama
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.2
}

// Context modes for replaying memory to the model.
const (
	// ContextModeSnapshot replays the running summary and raw turns as messages.
	ContextModeSnapshot = "snapshot"
	// ContextModeText sends the flattened conversation text as a single context message.
	ContextModeText = "text"
)

// MemoryConfig represents conversation memory configuration.
type MemoryConfig struct {
	TokenBudget      int
	SummaryWordLimit int
	// SummaryTokenCap re-summarizes the running summary once it costs more than this.
	// Zero keeps the summary append-only.
	SummaryTokenCap int
	ContextMode     string
	// TokenizerModel selects the tiktoken encoding.
	TokenizerModel string
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    p.LLMProvider,
			Model:       p.LLMModel,
			APIKey:      p.LLMAPIKey,
			BaseURL:     p.LLMBaseURL,
			MaxTokens:   p.LLMMaxTokens,
			Temperature: p.LLMTemperature,
		},
		Memory: MemoryConfig{
			TokenBudget:      p.TokenBudget,
			SummaryWordLimit: p.SummaryWordLimit,
			SummaryTokenCap:  p.SummaryTokenCap,
			ContextMode:      p.ContextMode,
			TokenizerModel:   p.LLMModel,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}

	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.Memory.TokenBudget <= 0 {
		return errors.New("memory token budget must be positive")
	}

	if c.Memory.SummaryTokenCap < 0 {
		return errors.New("summary token cap must not be negative")
	}

	switch c.Memory.ContextMode {
	case ContextModeSnapshot, ContextModeText:
	default:
		return errors.New("unknown memory context mode: " + c.Memory.ContextMode)
	}

	return nil
}
