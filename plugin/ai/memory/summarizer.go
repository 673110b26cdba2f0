package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/chatops/plugin/ai"
)

// DefaultSummaryWordLimit bounds a digest when no limit is configured.
const DefaultSummaryWordLimit = 300

const summarizePrompt = `You compress chat transcripts for a DevOps assistant.
Rewrite the conversation below into a digest of at most %d words.
Keep application names, versions, release tags, registry projects, statuses and any open question from the user.
Drop greetings and repetition. Write plain prose in the conversation's language, no lists, no markdown.
The digest will be given back to a language model as prior context, so it must be self-contained.`

// LLMSummarizer produces digests with a chat model.
type LLMSummarizer struct {
	llm       ai.LLMService
	wordLimit int
}

// NewLLMSummarizer creates a summarizer that keeps digests under wordLimit words.
func NewLLMSummarizer(llm ai.LLMService, wordLimit int) *LLMSummarizer {
	if wordLimit <= 0 {
		wordLimit = DefaultSummaryWordLimit
	}
	return &LLMSummarizer{llm: llm, wordLimit: wordLimit}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptySummary
	}

	messages := []ai.Message{
		ai.SystemPrompt(fmt.Sprintf(summarizePrompt, s.wordLimit)),
		ai.UserMessage(text),
	}
	digest, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(digest), nil
}
