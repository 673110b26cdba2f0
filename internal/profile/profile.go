package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "CHATOPS"

// Session store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Profile is the configuration to start chatops.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int

	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json

	// LLM Configuration
	LLMProvider    string // CHATOPS_LLM_PROVIDER (default: openai)
	LLMModel       string // CHATOPS_LLM_MODEL (default: gpt-4o-mini)
	LLMAPIKey      string // CHATOPS_LLM_API_KEY
	LLMBaseURL     string // CHATOPS_LLM_BASE_URL
	LLMMaxTokens   int    // CHATOPS_LLM_MAX_TOKENS (default: 1024)
	LLMTemperature float32

	// Conversation memory
	TokenBudget      int    // CHATOPS_MEMORY_TOKEN_BUDGET (default: 500)
	SummaryWordLimit int    // CHATOPS_MEMORY_SUMMARY_WORD_LIMIT (default: 300)
	SummaryTokenCap  int    // CHATOPS_MEMORY_SUMMARY_TOKEN_CAP (default: 0, never re-summarize)
	ContextMode      string // snapshot or text

	// Sessions
	SessionStore   string
	SessionIdleTTL time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SQLiteDSN      string

	// SessionRetention drops persisted sessions untouched for this long. Zero keeps them.
	SessionRetention time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	// DevOps backends. An empty URL/token disables the backend.
	ArgoCDURL      string
	ArgoCDToken    string
	GitHubToken    string
	GitHubBaseURL  string
	HarborURL      string
	HarborUsername string
	HarborPassword string

	// DevOpsRPS throttles calls to each backend. Zero disables throttling.
	DevOpsRPS float64
	// DevOpsCacheTTL caches backend responses. Zero disables caching.
	DevOpsCacheTTL time.Duration
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("memory.token_budget", 500)
	v.SetDefault("memory.summary_word_limit", 300)
	v.SetDefault("memory.summary_token_cap", 0)
	v.SetDefault("memory.context_mode", "snapshot")

	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("session.idle_ttl", time.Hour)
	v.SetDefault("session.retention", 0)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.sqlite.dsn", "chatops.db")

	v.SetDefault("rate_limit.rps", 2.0)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("devops.rps", 0)
	v.SetDefault("devops.cache_ttl", 15*time.Second)
}

// Load reads configuration from defaults, an optional config file and CHATOPS_* environment variables.
// Environment variables map nested keys with underscores: llm.api_key -> CHATOPS_LLM_API_KEY.
func Load(v *viper.Viper, configFile string) (*Profile, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", configFile)
		}
	}

	p := &Profile{
		Mode:      v.GetString("mode"),
		Addr:      v.GetString("addr"),
		Port:      v.GetInt("port"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		LLMProvider:    v.GetString("llm.provider"),
		LLMModel:       v.GetString("llm.model"),
		LLMAPIKey:      v.GetString("llm.api_key"),
		LLMBaseURL:     v.GetString("llm.base_url"),
		LLMMaxTokens:   v.GetInt("llm.max_tokens"),
		LLMTemperature: float32(v.GetFloat64("llm.temperature")),

		TokenBudget:      v.GetInt("memory.token_budget"),
		SummaryWordLimit: v.GetInt("memory.summary_word_limit"),
		SummaryTokenCap:  v.GetInt("memory.summary_token_cap"),
		ContextMode:      v.GetString("memory.context_mode"),

		SessionStore:   v.GetString("session.store"),
		SessionIdleTTL: v.GetDuration("session.idle_ttl"),
		RedisAddr:      v.GetString("session.redis.addr"),
		RedisPassword:  v.GetString("session.redis.password"),
		RedisDB:        v.GetInt("session.redis.db"),
		SQLiteDSN:      v.GetString("session.sqlite.dsn"),

		SessionRetention: v.GetDuration("session.retention"),

		RateLimitRPS:   v.GetFloat64("rate_limit.rps"),
		RateLimitBurst: v.GetInt("rate_limit.burst"),

		ArgoCDURL:      v.GetString("argocd.url"),
		ArgoCDToken:    v.GetString("argocd.token"),
		GitHubToken:    v.GetString("github.token"),
		GitHubBaseURL:  v.GetString("github.base_url"),
		HarborURL:      v.GetString("harbor.url"),
		HarborUsername: v.GetString("harbor.username"),
		HarborPassword: v.GetString("harbor.password"),

		DevOpsRPS:      v.GetFloat64("devops.rps"),
		DevOpsCacheTTL: v.GetDuration("devops.cache_ttl"),
	}

	return p, nil
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// ListenAddr returns the host:port the server binds to.
func (p *Profile) ListenAddr() string {
	return fmt.Sprintf("%s:%d", p.Addr, p.Port)
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.LLMProvider != "ollama" && p.LLMAPIKey == "" {
		return errors.Errorf("llm.api_key is required for provider %q (set %s_LLM_API_KEY)", p.LLMProvider, EnvPrefix)
	}
	if p.LLMModel == "" {
		return errors.New("llm.model is required")
	}

	if p.TokenBudget <= 0 {
		return errors.Errorf("memory.token_budget must be positive, got %d", p.TokenBudget)
	}
	if p.SummaryWordLimit <= 0 {
		return errors.Errorf("memory.summary_word_limit must be positive, got %d", p.SummaryWordLimit)
	}
	if p.ContextMode != "snapshot" && p.ContextMode != "text" {
		return errors.Errorf("memory.context_mode must be snapshot or text, got %q", p.ContextMode)
	}

	if p.SessionRetention < 0 {
		return errors.Errorf("session.retention must not be negative, got %s", p.SessionRetention)
	}

	switch p.SessionStore {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return errors.Errorf("unknown session store %q", p.SessionStore)
	}

	return nil
}
