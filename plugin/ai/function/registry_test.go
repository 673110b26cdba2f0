package function

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusApps() Function {
	return Function{
		Spec: Spec{
			Name:        "get_status_apps",
			Description: "List applications with the given sync status",
			Parameters: []Parameter{
				{Name: "status", Type: jsonschema.String, Description: "Sync status", Required: true},
				{Name: "limit", Type: jsonschema.Integer, Description: "Maximum results"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return []string{"app-a", "app-b"}, nil
		},
	}
}

func projects() Function {
	return Function{
		Spec: Spec{Name: "get_harbor_projects", Description: "List Harbor projects"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "library", nil
		},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry([]Function{statusApps()}, []Function{projects()})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	fn, ok := r.Lookup("get_status_apps")
	assert.True(t, ok)
	assert.Equal(t, "get_status_apps", fn.Spec.Name)

	_, ok = r.Lookup("get_unknown")
	assert.False(t, ok)

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "get_status_apps", specs[0].Name)
	assert.Equal(t, "get_harbor_projects", specs[1].Name)
}

func TestNewRegistryRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		funcs []Function
	}{
		{"duplicate", []Function{statusApps(), statusApps()}},
		{"empty name", []Function{{Spec: Spec{}, Handler: projects().Handler}}},
		{"nil handler", []Function{{Spec: Spec{Name: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.funcs)
			assert.Error(t, err)
		})
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	_, ok := r.Lookup("anything")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Descriptors())
}

func TestDescriptors(t *testing.T) {
	r, err := NewRegistry([]Function{statusApps(), projects()})
	require.NoError(t, err)

	descs := r.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "get_status_apps", descs[0].Name)
	assert.Equal(t, "List applications with the given sync status", descs[0].Description)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(descs[0].Parameters), &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"status"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "status")
	assert.Contains(t, props, "limit")

	require.NoError(t, json.Unmarshal([]byte(descs[1].Parameters), &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestSpecValidate(t *testing.T) {
	spec := statusApps().Spec

	tests := []struct {
		name    string
		args    map[string]any
		wantErr error
	}{
		{"ok", map[string]any{"status": "OutOfSync"}, nil},
		{"ok with optional", map[string]any{"status": "Synced", "limit": float64(3)}, nil},
		{"missing required", map[string]any{}, ErrMissingArgument},
		{"null required", map[string]any{"status": nil}, ErrMissingArgument},
		{"wrong type", map[string]any{"status": float64(1)}, ErrArgumentType},
		{"fractional integer", map[string]any{"status": "Synced", "limit": 1.5}, ErrArgumentType},
		{"unknown argument ignored", map[string]any{"status": "Synced", "extra": true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := spec.Validate(tt.args)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCall(t *testing.T) {
	ctx := context.Background()

	out, err := Call(ctx, statusApps(), map[string]any{"status": "OutOfSync"})
	require.NoError(t, err)
	assert.Equal(t, `["app-a","app-b"]`, out)

	_, err = Call(ctx, statusApps(), nil)
	assert.ErrorIs(t, err, ErrMissingArgument)

	boom := errors.New("upstream 503")
	failing := Function{
		Spec:    Spec{Name: "failing"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return nil, boom },
	}
	_, err = Call(ctx, failing, nil)
	assert.ErrorIs(t, err, boom)
}

type version string

func (v version) String() string { return "v" + string(v) }

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"nil pointer", (*struct{ Name string })(nil), "null"},
		{"string", "plain", "plain"},
		{"bytes", []byte("raw"), "raw"},
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"stringer", version("1.2.3"), "v1.2.3"},
		{"map", map[string]any{"name": "app-a"}, `{"name":"app-a"}`},
		{"slice", []int{1, 2}, `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ToText(make(chan int))
	assert.Error(t, err)
}

func TestStringArg(t *testing.T) {
	args := map[string]any{"owner": "argoproj", "n": float64(1)}
	assert.Equal(t, "argoproj", StringArg(args, "owner"))
	assert.Equal(t, "", StringArg(args, "n"))
	assert.Equal(t, "", StringArg(args, "missing"))
}
