// Package devops builds the function registry from the configured DevOps backends.
package devops

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/chatops/internal/profile"
	"github.com/hrygo/chatops/plugin/ai/function"
	"github.com/hrygo/chatops/plugin/devops/argocd"
	"github.com/hrygo/chatops/plugin/devops/github"
	"github.com/hrygo/chatops/plugin/devops/harbor"
)

// Config holds the configuration of every backend. A backend that is not
// enabled contributes no functions.
type Config struct {
	ArgoCD argocd.Config
	GitHub github.Config
	Harbor harbor.Config
}

// ConfigFromProfile maps the profile onto backend configs.
func ConfigFromProfile(p *profile.Profile) Config {
	return Config{
		ArgoCD: argocd.Config{
			URL:      p.ArgoCDURL,
			Token:    p.ArgoCDToken,
			RPS:      p.DevOpsRPS,
			CacheTTL: p.DevOpsCacheTTL,
		},
		GitHub: github.Config{
			BaseURL:  p.GitHubBaseURL,
			Token:    p.GitHubToken,
			RPS:      p.DevOpsRPS,
			CacheTTL: p.DevOpsCacheTTL,
		},
		Harbor: harbor.Config{
			URL:      p.HarborURL,
			Username: p.HarborUsername,
			Password: p.HarborPassword,
			RPS:      p.DevOpsRPS,
			CacheTTL: p.DevOpsCacheTTL,
		},
	}
}

// Functions constructs the enabled clients and returns their function groups.
func Functions(cfg Config) ([][]function.Function, error) {
	var groups [][]function.Function

	if cfg.ArgoCD.Enabled() {
		c, err := argocd.NewClient(cfg.ArgoCD)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create argocd client")
		}
		groups = append(groups, c.Functions())
	}

	if cfg.GitHub.Enabled() {
		c, err := github.NewClient(cfg.GitHub)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create github client")
		}
		groups = append(groups, c.Functions())
	}

	if cfg.Harbor.Enabled() {
		c, err := harbor.NewClient(cfg.Harbor)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create harbor client")
		}
		groups = append(groups, c.Functions())
	}

	return groups, nil
}

// NewRegistry builds the immutable registry of every enabled backend.
func NewRegistry(cfg Config) (*function.Registry, error) {
	groups, err := Functions(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := function.NewRegistry(groups...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build function registry")
	}

	slog.Info("function registry ready",
		"functions", registry.Len(),
		"argocd", cfg.ArgoCD.Enabled(),
		"github", cfg.GitHub.Enabled(),
		"harbor", cfg.Harbor.Enabled(),
	)
	return registry, nil
}
