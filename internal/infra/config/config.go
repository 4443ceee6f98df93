package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"promptmatrix/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Router    RouterConfig    `yaml:"router"`
	Flows     FlowsConfig     `yaml:"flows"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Providers ProvidersConfig `yaml:"providers"`
	History   HistoryConfig   `yaml:"history"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// LLMConfig holds the active provider configuration plus transport tuning.
type LLMConfig struct {
	Provider         string   `yaml:"provider"`
	APIKey           string   `yaml:"api_key"`
	BaseURL          string   `yaml:"base_url"`
	Model            string   `yaml:"model"`
	Temperature      *float64 `yaml:"temperature"`
	MaxTokens        int      `yaml:"max_tokens"`
	TopP             *float64 `yaml:"top_p"`
	CustomProviderID string   `yaml:"custom_provider_id"`
	ReasoningTokens  int      `yaml:"reasoning_tokens"`

	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// PoolConfig configures HTTP connection pooling for the completion client.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// BreakerConfig configures the optional circuit breaker around the
// completion client. Disabled by default.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// RouterConfig holds router/session settings.
type RouterConfig struct {
	// MaxHistory caps the conversation history length; oldest turns are
	// dropped first. Default 50.
	MaxHistory int `yaml:"max_history"`
	// ContextWindow is the model context window used by the token guard
	// to warn about oversized compositions. 0 disables the guard.
	ContextWindow int `yaml:"context_window"`
}

// FlowsConfig holds flow engine settings.
type FlowsConfig struct {
	// Dir is an optional directory of YAML flow templates loaded in
	// addition to the built-in defaults.
	Dir string `yaml:"dir"`
	// RunsDir is where flow run records are persisted. Empty disables
	// run persistence.
	RunsDir string `yaml:"runs_dir"`
}

// PromptsConfig points at an optional directory of agent prompt files
// overriding the built-in defaults.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// ProvidersConfig locates the custom-provider directory file.
type ProvidersConfig struct {
	File string `yaml:"file"`
}

// HistoryConfig locates the conversation history file. Empty disables
// persistence; history then lives only for the process lifetime.
type HistoryConfig struct {
	File string `yaml:"file"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// providerDefaultBaseURLs maps each provider to its default endpoint.
var providerDefaultBaseURLs = map[domain.Provider]string{
	domain.ProviderDeepSeek:   "https://api.deepseek.com/v1",
	domain.ProviderOpenAI:     "https://api.openai.com/v1",
	domain.ProviderGemini:     "https://generativelanguage.googleapis.com/v1beta",
	domain.ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

var versionSegment = regexp.MustCompile(`(?i)/v\d+($|/)`)

// NormalizeBaseURL resolves the effective base URL for a provider: empty
// falls back to the provider default, trailing slashes are stripped, and
// providers with versioned APIs get a /v1 suffix when the URL carries no
// version segment.
func NormalizeBaseURL(provider domain.Provider, baseURL string) string {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return providerDefaultBaseURLs[provider]
	}
	trimmed := strings.TrimRight(raw, "/")
	switch provider {
	case domain.ProviderDeepSeek, domain.ProviderOpenAI, domain.ProviderOpenRouter:
		if !versionSegment.MatchString(trimmed) {
			return trimmed + "/v1"
		}
	}
	return trimmed
}

// ToProviderConfig converts the YAML shape to the domain configuration
// consumed by the completion client.
func (c LLMConfig) ToProviderConfig() domain.ProviderConfig {
	return domain.ProviderConfig{
		Provider:         domain.Provider(c.Provider),
		APIKey:           c.APIKey,
		BaseURL:          c.BaseURL,
		Model:            c.Model,
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		TopP:             c.TopP,
		CustomProviderID: c.CustomProviderID,
		ReasoningTokens:  c.ReasoningTokens,
	}
}

// Load reads and validates a YAML config file, applying defaults and
// environment fallbacks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a usable config without a file, driven by environment
// variables.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = string(domain.ProviderDeepSeek)
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "deepseek-chat"
	}
	if c.Router.MaxHistory <= 0 {
		c.Router.MaxHistory = 50
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stderr"
	}
}

// applyEnv fills credentials from the environment when the file left them
// empty. File values win over environment values.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("PROMPTMATRIX_API_KEY")
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = os.Getenv("PROMPTMATRIX_BASE_URL")
	}
	if v := os.Getenv("PROMPTMATRIX_MODEL"); v != "" && c.LLM.Model == "deepseek-chat" {
		c.LLM.Model = v
	}
}
