package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rc := NewRequestContext(logger, "/api/v1/query")
	rc.SessionID = "abc"
	require.NotEmpty(t, rc.RequestID)

	rc.Info("turn finished", slog.String(LogFieldFunction, "get_status_apps"))
	rc.Error("turn failed", errors.New("boom"), slog.String(LogFieldErrorCode, "INTERNAL"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"`+rc.RequestID+`"`)
	assert.Contains(t, out, `"session_id":"abc"`)
	assert.Contains(t, out, `"route":"/api/v1/query"`)
	assert.Contains(t, out, `"function":"get_status_apps"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestRequestContext_WithID(t *testing.T) {
	rc := NewRequestContextWithID(nil, "req-1", "/healthz")
	assert.Equal(t, "req-1", rc.RequestID)
	assert.NotNil(t, rc.Logger)

	generated := NewRequestContextWithID(nil, "", "/healthz")
	assert.NotEmpty(t, generated.RequestID)

	ctx := WithRequestContext(context.Background(), rc)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics(10)
	m.RecordRequest("/api/v1/query", 100*time.Millisecond, "")
	m.RecordRequest("/api/v1/query", 300*time.Millisecond, "EXTERNAL_CALL_FAILED")
	m.RecordRequest("/healthz", time.Millisecond, "")

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.RequestTotal)
	assert.Equal(t, int64(1), s.RequestFailed)
	assert.Equal(t, map[string]int64{"EXTERNAL_CALL_FAILED": 1}, s.ErrorCodes)
	require.Len(t, s.Routes, 2)
	assert.Equal(t, RouteSnapshot{Route: "/api/v1/query", Count: 2, Errors: 1, AverageMs: 200}, s.Routes[0])
	assert.Equal(t, int64(100), s.P50Ms)
	assert.InDelta(t, 66.67, s.SuccessRate(), 0.01)

	m.Reset()
	s = m.Snapshot()
	assert.Zero(t, s.RequestTotal)
	assert.Empty(t, s.Routes)
	assert.Equal(t, 100.0, s.SuccessRate())
}

func TestMetrics_DurationWindow(t *testing.T) {
	m := NewMetrics(2)
	m.RecordRequest("/a", time.Second, "")
	m.RecordRequest("/a", 10*time.Millisecond, "")
	m.RecordRequest("/a", 20*time.Millisecond, "")

	s := m.Snapshot()
	assert.Equal(t, int64(10), s.P50Ms)
	assert.Equal(t, int64(10), s.P95Ms)
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRequest("/api/v1/query", time.Millisecond, "")
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), m.GetRequestTotal())
	assert.Zero(t, m.GetRequestFailed())
}
