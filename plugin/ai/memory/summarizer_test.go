package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatops/plugin/ai"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) ChatWithTools(ctx context.Context, messages []ai.Message, tools []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	args := m.Called(ctx, messages, tools)
	resp, _ := args.Get(0).(*ai.ChatResponse)
	return resp, args.Error(1)
}

func TestLLMSummarizer(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Chat", mock.Anything, mock.MatchedBy(func(msgs []ai.Message) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == ai.RoleSystem &&
			msgs[1].Content == "user asked about app-a"
	})).Return("  The user asked about app-a.  ", nil)

	s := NewLLMSummarizer(llm, 50)
	digest, err := s.Summarize(context.Background(), "user asked about app-a")

	require.NoError(t, err)
	assert.Equal(t, "The user asked about app-a.", digest)
	llm.AssertExpectations(t)
}

func TestLLMSummarizer_PromptCarriesWordLimit(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Chat", mock.Anything, mock.Anything).Return("ok", nil)

	_, err := NewLLMSummarizer(llm, 42).Summarize(context.Background(), "text")
	require.NoError(t, err)

	msgs := llm.Calls[0].Arguments.Get(1).([]ai.Message)
	assert.Contains(t, msgs[0].Content, "at most 42 words")
}

func TestLLMSummarizer_Errors(t *testing.T) {
	llm := &mockLLM{}
	boom := errors.New("unavailable")
	llm.On("Chat", mock.Anything, mock.Anything).Return("", boom)

	s := NewLLMSummarizer(llm, 0)
	_, err := s.Summarize(context.Background(), "something")
	assert.ErrorIs(t, err, boom)

	_, err = s.Summarize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptySummary)
	llm.AssertNumberOfCalls(t, "Chat", 1)
}
