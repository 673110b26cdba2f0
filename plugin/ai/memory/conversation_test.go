package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatops/plugin/ai"
	"github.com/hrygo/chatops/plugin/ai/tokenizer"
)

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

// recordingSummarizer returns a fixed digest and records every input.
type recordingSummarizer struct {
	mu     sync.Mutex
	digest string
	err    error
	inputs []string
}

func (s *recordingSummarizer) Summarize(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, text)
	if s.err != nil {
		return "", s.err
	}
	return s.digest, nil
}

func (s *recordingSummarizer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func newMemory(s Summarizer, budget int) *ConversationMemory {
	return NewConversationMemory(tokenizer.Words, s, Config{TokenBudget: budget})
}

func TestAppend_UnderBudgetKeepsInvariant(t *testing.T) {
	ctx := context.Background()
	sum := &recordingSummarizer{digest: "digest"}
	mem := newMemory(sum, 100)

	for i := 0; i < 8; i++ {
		role := ai.RoleUser
		if i%2 == 1 {
			role = ai.RoleAssistant
		}
		require.NoError(t, mem.Append(ctx, role, words(i+1, "w")))
		assert.Equal(t, tokenizer.Words.Count(mem.Text()), mem.TokenCount())
	}

	assert.Equal(t, 36, mem.TokenCount())
	assert.Len(t, mem.Snapshot(), 8)
	assert.Empty(t, mem.Summary())
	assert.Zero(t, sum.calls())
	assert.Zero(t, mem.Compactions())
}

func TestAppend_CompactsBeforeCrossingBudget(t *testing.T) {
	ctx := context.Background()
	sum := &recordingSummarizer{digest: "ops asked about apps"}
	mem := newMemory(sum, 50)

	first, second, third := words(10, "a"), words(10, "b"), words(35, "c")

	require.NoError(t, mem.Append(ctx, ai.RoleUser, first))
	require.NoError(t, mem.Append(ctx, ai.RoleAssistant, second))
	assert.Equal(t, 20, mem.TokenCount())
	assert.Zero(t, sum.calls())

	require.NoError(t, mem.Append(ctx, ai.RoleUser, third))

	require.Equal(t, 1, sum.calls())
	assert.Equal(t, first+" "+second, sum.inputs[0])
	assert.Equal(t, 1, mem.Compactions())

	history := mem.Snapshot()
	require.Len(t, history, 1)
	assert.Equal(t, third, history[0].Content)
	assert.Equal(t, ai.RoleUser, history[0].Role)
	assert.Equal(t, "ops asked about apps", mem.Summary())
	assert.Equal(t, tokenizer.Words.Count(mem.Text()), mem.TokenCount())
	assert.Equal(t, 4+35, mem.TokenCount())
}

func TestAppend_SummaryGrowsAsPrefix(t *testing.T) {
	ctx := context.Background()
	sum := &recordingSummarizer{digest: "first digest"}
	mem := newMemory(sum, 20)

	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(15, "a")))
	require.NoError(t, mem.Append(ctx, ai.RoleAssistant, words(10, "b")))
	require.Equal(t, 1, mem.Compactions())
	previous := mem.Summary()

	sum.digest = "second digest"
	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(15, "c")))
	require.Equal(t, 2, mem.Compactions())

	assert.True(t, strings.HasPrefix(mem.Summary(), previous))
	assert.Greater(t, len(mem.Summary()), len(previous))
	assert.Equal(t, "first digest second digest", mem.Summary())
	assert.Len(t, mem.Snapshot(), 1)
	assert.Equal(t, tokenizer.Words.Count(mem.Text()), mem.TokenCount())
}

func TestAppend_EmptyContentIsNoop(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(&recordingSummarizer{digest: "d"}, 50)
	require.NoError(t, mem.Append(ctx, ai.RoleUser, "hello there"))

	before := mem.State()
	require.NoError(t, mem.Append(ctx, ai.RoleAssistant, ""))

	assert.Equal(t, before, mem.State())
}

func TestAppend_SummarizerFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("model down")
	sum := &recordingSummarizer{err: boom}
	mem := newMemory(sum, 10)

	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(8, "a")))
	before := mem.State()

	err := mem.Append(ctx, ai.RoleAssistant, words(5, "b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, mem.State())
	assert.Zero(t, mem.Compactions())
}

func TestAppendTurn_RecordsPair(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(&recordingSummarizer{digest: "digest"}, 10)

	require.NoError(t, mem.AppendTurn(ctx, "list apps", "app-a and app-b"))

	assert.Equal(t, []ai.Message{
		ai.UserMessage("list apps"),
		ai.AssistantMessage("app-a and app-b"),
	}, mem.Snapshot())
	assert.Equal(t, tokenizer.Words.Count(mem.Text()), mem.TokenCount())
}

func TestAppendTurn_RollsBackAfterPartialCompaction(t *testing.T) {
	ctx := context.Background()
	calls := 0
	sum := SummarizerFunc(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "s", nil
		}
		return "", errors.New("model down")
	})
	mem := newMemory(sum, 4)

	require.NoError(t, mem.Append(ctx, ai.RoleUser, "a b c"))
	before := mem.State()

	// The query compacts successfully, the answer's compaction fails.
	err := mem.AppendTurn(ctx, "d e", "f g")
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	assert.Equal(t, before, mem.State())
	assert.Empty(t, mem.Summary())
	assert.Equal(t, 3, mem.TokenCount())
	assert.Zero(t, mem.Compactions())
}

func TestAppendTurn_SkipsEmptyAnswer(t *testing.T) {
	mem := newMemory(nil, 10)

	require.NoError(t, mem.AppendTurn(context.Background(), "hello", ""))
	assert.Equal(t, []ai.Message{ai.UserMessage("hello")}, mem.Snapshot())
}

func TestAppend_EmptyDigestIsError(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(&recordingSummarizer{digest: "   "}, 10)

	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(8, "a")))
	err := mem.Append(ctx, ai.RoleAssistant, words(5, "b"))
	assert.ErrorIs(t, err, ErrEmptySummary)
	assert.Len(t, mem.Snapshot(), 1)
}

func TestAppend_OversizedMessageIsKeptWhole(t *testing.T) {
	ctx := context.Background()
	sum := &recordingSummarizer{digest: "short"}
	mem := newMemory(sum, 10)

	// Nothing to compact yet: the message is appended and the budget is exceeded.
	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(25, "a")))
	assert.Zero(t, sum.calls())
	assert.Equal(t, 25, mem.TokenCount())

	// The next append compacts the oversized message.
	require.NoError(t, mem.Append(ctx, ai.RoleAssistant, words(3, "b")))
	assert.Equal(t, 1, sum.calls())
	assert.Equal(t, "short", mem.Summary())
	assert.Equal(t, 4, mem.TokenCount())
}

func TestAppend_NoSummarizerFailsOnCompaction(t *testing.T) {
	ctx := context.Background()
	mem := NewConversationMemory(tokenizer.Words, nil, Config{TokenBudget: 5})

	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(4, "a")))
	assert.Error(t, mem.Append(ctx, ai.RoleUser, words(4, "b")))
	assert.Len(t, mem.Snapshot(), 1)
}

func TestAppend_SummaryTokenCapCondensesSummary(t *testing.T) {
	ctx := context.Background()
	digests := []string{words(6, "d"), words(6, "e"), "condensed"}
	var inputs []string
	sum := SummarizerFunc(func(_ context.Context, text string) (string, error) {
		inputs = append(inputs, text)
		next := digests[0]
		digests = digests[1:]
		return next, nil
	})
	mem := NewConversationMemory(tokenizer.Words, sum, Config{TokenBudget: 20, SummaryTokenCap: 10})

	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(15, "a")))
	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(10, "b"))) // summary: 6 words
	assert.Equal(t, words(6, "d"), mem.Summary())

	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(11, "c"))) // summary: 12 words > cap
	require.Len(t, inputs, 3)
	assert.Equal(t, words(6, "d")+" "+words(6, "e"), inputs[2])
	assert.Equal(t, "condensed", mem.Summary())
	assert.Equal(t, tokenizer.Words.Count(mem.Text()), mem.TokenCount())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(&recordingSummarizer{digest: "d"}, 10)
	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(8, "a")))
	require.NoError(t, mem.Append(ctx, ai.RoleUser, words(8, "b")))
	require.NotEmpty(t, mem.Summary())

	mem.Clear()

	assert.Empty(t, mem.Summary())
	assert.Empty(t, mem.Snapshot())
	assert.Zero(t, mem.TokenCount())
	assert.Empty(t, mem.Text())
}

func TestStateRestore(t *testing.T) {
	ctx := context.Background()
	src := newMemory(&recordingSummarizer{digest: "digest"}, 50)
	require.NoError(t, src.Append(ctx, ai.RoleUser, "list out-of-sync apps"))
	require.NoError(t, src.Append(ctx, ai.RoleAssistant, "app-a and app-b are out of sync"))

	state := src.State()
	state.TokenCount = 999

	dst := newMemory(nil, 50)
	dst.Restore(state)

	assert.Equal(t, src.Snapshot(), dst.Snapshot())
	assert.Equal(t, src.TokenCount(), dst.TokenCount())
	assert.Equal(t, src.Text(), dst.Text())
}

func TestSnapshotIsACopy(t *testing.T) {
	mem := newMemory(nil, 50)
	require.NoError(t, mem.Append(context.Background(), ai.RoleUser, "hello"))

	snap := mem.Snapshot()
	snap[0].Content = "changed"

	assert.Equal(t, "hello", mem.Snapshot()[0].Content)
}

func TestDefaultBudget(t *testing.T) {
	mem := NewConversationMemory(nil, nil, Config{})
	assert.Equal(t, DefaultTokenBudget, mem.Budget())
}

func TestConcurrentAppendsAcrossMemories(t *testing.T) {
	ctx := context.Background()
	sum := &recordingSummarizer{digest: "digest"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mem := newMemory(sum, 30)
			for j := 0; j < 20; j++ {
				assert.NoError(t, mem.Append(ctx, ai.RoleUser, words(7, "w")))
				assert.Equal(t, tokenizer.Words.Count(mem.Text()), mem.TokenCount())
			}
		}()
	}
	wg.Wait()
}
