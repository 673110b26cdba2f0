package argocd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatops/plugin/ai/function"
	"github.com/hrygo/chatops/plugin/devops/httpapi"
)

const applicationsJSON = `{"items": [
	{
		"metadata": {"name": "app-a"},
		"spec": {"destination": {"server": "https://kubernetes.default.svc"}},
		"status": {"sync": {"status": "OutOfSync", "errorMessage": "ComparisonError"}, "health": {"status": "Healthy"}}
	},
	{
		"metadata": {"name": "app-b"},
		"spec": {"destination": {}},
		"status": {"sync": {"status": "OutOfSync"}, "health": {"status": "Degraded"}}
	},
	{
		"metadata": {"name": "app-c"},
		"spec": {"destination": {"server": "https://prod.example.com"}},
		"status": {"sync": {"status": "Synced"}, "health": {"status": "Healthy"}}
	}
]}`

func newTestClient(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/applications", r.URL.Path)
		assert.Equal(t, "Bearer argo-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{URL: srv.URL, Token: "argo-token"})
	require.NoError(t, err)
	return c
}

func TestApplications(t *testing.T) {
	c := newTestClient(t, http.StatusOK, applicationsJSON)

	apps, err := c.Applications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 3)

	assert.Equal(t, Application{
		Name:              "app-a",
		SyncStatus:        "OutOfSync",
		HealthStatus:      "Healthy",
		SyncErrors:        "ComparisonError",
		DestinationServer: "https://kubernetes.default.svc",
	}, apps[0])
	assert.Equal(t, noSyncErrors, apps[1].SyncErrors)
	assert.Equal(t, noServer, apps[1].DestinationServer)
}

func TestAppsWithStatus(t *testing.T) {
	c := newTestClient(t, http.StatusOK, applicationsJSON)

	tests := []struct {
		status string
		want   []string
	}{
		{"OutOfSync", []string{"app-a", "app-b"}},
		{"outofsync", []string{"app-a", "app-b"}},
		{"Healthy", []string{"app-a", "app-c"}},
		{"Degraded", []string{"app-b"}},
		{"Missing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			names, err := c.AppsWithStatus(context.Background(), tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestApplications_UpstreamError(t *testing.T) {
	c := newTestClient(t, http.StatusForbidden, `{"error":"permission denied"}`)

	_, err := c.Applications(context.Background())
	require.Error(t, err)

	var se *httpapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestFunctions(t *testing.T) {
	c := newTestClient(t, http.StatusOK, applicationsJSON)

	registry, err := function.NewRegistry(c.Functions())
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	fn, ok := registry.Lookup(FuncStatusApps)
	require.True(t, ok)

	out, err := function.Call(context.Background(), fn, map[string]any{"status": "OutOfSync"})
	require.NoError(t, err)
	assert.JSONEq(t, `["app-a","app-b"]`, out)

	_, err = function.Call(context.Background(), fn, map[string]any{})
	assert.ErrorIs(t, err, function.ErrMissingArgument)

	fn, ok = registry.Lookup(FuncApplications)
	require.True(t, ok)
	out, err = function.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"sync_errors":"No sync errors"`)
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{URL: "https://argocd.example.com"}.Enabled())

	_, err := NewClient(Config{})
	assert.Error(t, err)
}
