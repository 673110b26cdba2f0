// Package argocd exposes read-only ArgoCD application queries as callable functions.
package argocd

import (
	"context"
	"strings"
	"time"

	"github.com/hrygo/chatops/plugin/devops/httpapi"
)

const (
	noSyncErrors = "No sync errors"
	noServer     = "No server provided"
)

// Config configures the ArgoCD client.
type Config struct {
	URL   string
	Token string

	// RPS throttles requests to the ArgoCD API. Zero disables throttling.
	RPS float64
	// CacheTTL caches upstream responses. Zero disables caching.
	CacheTTL time.Duration
}

// Enabled reports whether the backend is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Application is the subset of an ArgoCD application handed to the model.
type Application struct {
	Name              string `json:"name"`
	SyncStatus        string `json:"sync_status"`
	HealthStatus      string `json:"health_status"`
	SyncErrors        string `json:"sync_errors"`
	DestinationServer string `json:"destination_server"`
}

type applicationList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Spec struct {
			Destination struct {
				Server string `json:"server"`
			} `json:"destination"`
		} `json:"spec"`
		Status struct {
			Sync struct {
				Status       string `json:"status"`
				ErrorMessage string `json:"errorMessage"`
			} `json:"sync"`
			Health struct {
				Status string `json:"status"`
			} `json:"health"`
		} `json:"status"`
	} `json:"items"`
}

// Client queries the ArgoCD REST API.
type Client struct {
	api *httpapi.Client
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	api, err := httpapi.New(httpapi.Options{
		Backend:  "argocd",
		BaseURL:  cfg.URL,
		Token:    cfg.Token,
		RPS:      cfg.RPS,
		CacheTTL: cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Applications lists every application visible to the token.
func (c *Client) Applications(ctx context.Context) ([]Application, error) {
	var list applicationList
	if err := c.api.GetJSON(ctx, "/api/v1/applications", nil, &list); err != nil {
		return nil, err
	}

	apps := make([]Application, 0, len(list.Items))
	for _, item := range list.Items {
		app := Application{
			Name:              item.Metadata.Name,
			SyncStatus:        item.Status.Sync.Status,
			HealthStatus:      item.Status.Health.Status,
			SyncErrors:        item.Status.Sync.ErrorMessage,
			DestinationServer: item.Spec.Destination.Server,
		}
		if app.SyncErrors == "" {
			app.SyncErrors = noSyncErrors
		}
		if app.DestinationServer == "" {
			app.DestinationServer = noServer
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// AppsWithStatus returns the names of applications whose sync or health status equals status.
// Matching ignores case so "outofsync" finds OutOfSync apps.
func (c *Client) AppsWithStatus(ctx context.Context, status string) ([]string, error) {
	apps, err := c.Applications(ctx)
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, app := range apps {
		if strings.EqualFold(app.SyncStatus, status) || strings.EqualFold(app.HealthStatus, status) {
			names = append(names, app.Name)
		}
	}
	return names, nil
}
