package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatops/internal/profile"
	"github.com/hrygo/chatops/plugin/ai"
	"github.com/hrygo/chatops/plugin/ai/agent"
	"github.com/hrygo/chatops/plugin/ai/memory"
	"github.com/hrygo/chatops/plugin/ai/session"
	"github.com/hrygo/chatops/plugin/ai/tokenizer"
)

// MockLLM implements ai.LLMService for testing.
type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockLLM) ChatWithTools(ctx context.Context, messages []ai.Message, tools []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	args := m.Called(ctx, messages, tools)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.ChatResponse), args.Error(1)
}

func newTestApp(llm ai.LLMService) *app {
	return &app{
		orchestrator: agent.NewOrchestrator(llm, nil, agent.Options{}),
		sessions: session.NewManager(nil, tokenizer.Words, nil, session.Config{
			Memory: memory.Config{TokenBudget: 1000},
		}),
		metrics: agent.NewMetrics(),
	}
}

func TestRunChat(t *testing.T) {
	llm := &MockLLM{}
	llm.On("ChatWithTools", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: "All apps are synced."}, nil).Once()
	llm.On("ChatWithTools", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &ai.ModelError{Kind: ai.ErrModelTransport, Cause: errors.New("503")}).Once()
	llm.On("ChatWithTools", mock.Anything, mock.Anything, mock.Anything).
		Return(&ai.ChatResponse{Content: "Fresh start."}, nil).Once()

	a := newTestApp(llm)
	in := strings.NewReader("Are my apps synced?\n\nAnd now?\n/reset\nhello\n/exit\nignored\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), a, "cli-1", in, &out))

	text := out.String()
	assert.Contains(t, text, "Session cli-1.")
	assert.Contains(t, text, "Assistant: All apps are synced.")
	assert.Contains(t, text, "Error: ")
	assert.Contains(t, text, "Conversation cleared.")
	assert.Contains(t, text, "Assistant: Fresh start.")
	assert.NotContains(t, text, "ignored")

	info, err := a.sessions.Inspect(context.Background(), "cli-1")
	require.NoError(t, err)
	require.Len(t, info.History, 2)
	assert.Equal(t, "hello", info.History[0].Content)
	llm.AssertExpectations(t)
}

func TestRunChat_EOF(t *testing.T) {
	a := newTestApp(&MockLLM{})
	var out bytes.Buffer
	assert.NoError(t, runChat(context.Background(), a, "cli-2", strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "You: ")
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := newStore(ctx, &profile.Profile{SessionStore: profile.StoreMemory})
		require.NoError(t, err)
		assert.IsType(t, &session.MemoryStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "sessions.db")
		store, err := newStore(ctx, &profile.Profile{SessionStore: profile.StoreSQLite, SQLiteDSN: dsn})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &session.SQLiteStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := newStore(ctx, &profile.Profile{SessionStore: profile.StoreRedis, RedisAddr: mr.Addr()})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &session.RedisStore{}, store)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		_, err = newStore(ctx, &profile.Profile{SessionStore: profile.StoreRedis, RedisAddr: addr})
		assert.Error(t, err)
	})
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := setupLogger(&profile.Profile{Mode: "prod", LogLevel: "warn", LogFormat: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
