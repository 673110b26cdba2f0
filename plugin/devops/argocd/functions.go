package argocd

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/hrygo/chatops/plugin/ai/function"
)

// Function names exposed to the model.
const (
	FuncApplications = "get_argocd_applications"
	FuncStatusApps   = "get_status_apps"
)

// Functions returns the ArgoCD functions backed by c.
func (c *Client) Functions() []function.Function {
	return []function.Function{
		{
			Spec: function.Spec{
				Name:        FuncApplications,
				Description: "List ArgoCD applications with their sync status, health status, sync errors and destination server.",
			},
			Handler: func(ctx context.Context, _ map[string]any) (any, error) {
				return c.Applications(ctx)
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncStatusApps,
				Description: "List the names of ArgoCD applications whose sync status or health status matches the given status.",
				Parameters: []function.Parameter{
					{
						Name:        "status",
						Type:        jsonschema.String,
						Description: "Sync status (Synced, OutOfSync, Unknown) or health status (Healthy, Progressing, Degraded, Suspended, Missing)",
						Required:    true,
					},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.AppsWithStatus(ctx, function.StringArg(args, "status"))
			},
		},
	}
}
