package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/chatops/internal/profile"
	"github.com/hrygo/chatops/plugin/ai"
	"github.com/hrygo/chatops/plugin/ai/agent"
	"github.com/hrygo/chatops/plugin/ai/memory"
	"github.com/hrygo/chatops/plugin/ai/session"
	"github.com/hrygo/chatops/plugin/ai/timeout"
	"github.com/hrygo/chatops/plugin/ai/tokenizer"
	"github.com/hrygo/chatops/plugin/devops"
)

// app holds the components shared by every command.
type app struct {
	orchestrator *agent.Orchestrator
	sessions     *session.Manager
	metrics      *agent.Metrics
}

// newApp builds the object graph from the profile. llm may be nil, in which
// case it is created from the profile.
func newApp(ctx context.Context, p *profile.Profile, llm ai.LLMService) (*app, error) {
	cfg := ai.NewConfigFromProfile(p)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid ai config")
	}

	if llm == nil {
		svc, err := ai.NewLLMService(&cfg.LLM)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create llm service")
		}
		llm = svc
	}

	registry, err := devops.NewRegistry(devops.ConfigFromProfile(p))
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, p)
	if err != nil {
		return nil, err
	}

	metrics := agent.NewMetrics()
	orchestrator := agent.NewOrchestrator(llm, registry, agent.Options{
		ContextMode:     cfg.Memory.ContextMode,
		FunctionTimeout: timeout.FunctionTimeout,
		Metrics:         metrics,
	})

	sessions := session.NewManager(
		store,
		tokenizer.New(cfg.Memory.TokenizerModel),
		memory.NewLLMSummarizer(llm, cfg.Memory.SummaryWordLimit),
		session.Config{
			Memory: memory.Config{
				TokenBudget:     cfg.Memory.TokenBudget,
				SummaryTokenCap: cfg.Memory.SummaryTokenCap,
			},
			IdleTTL:         p.SessionIdleTTL,
			CleanupInterval: timeout.SessionCleanupInterval,
			Retention:       p.SessionRetention,
		},
	)

	return &app{
		orchestrator: orchestrator,
		sessions:     sessions,
		metrics:      metrics,
	}, nil
}

// newStore opens the session store selected by the profile.
func newStore(ctx context.Context, p *profile.Profile) (session.Store, error) {
	switch p.SessionStore {
	case profile.StoreRedis:
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     p.RedisAddr,
			Password: p.RedisPassword,
			DB:       p.RedisDB,
			TTL:      p.SessionRetention,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to open redis session store")
		}
		return store, nil
	case profile.StoreSQLite:
		store, err := session.NewSQLiteStore(ctx, p.SQLiteDSN)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open sqlite session store")
		}
		return store, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func (a *app) Close() error {
	return a.sessions.Close()
}
