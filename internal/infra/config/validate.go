package config

import (
	"fmt"
	"strings"

	"promptmatrix/internal/domain"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func (c *Config) Validate() error {
	ve := &ValidationError{}
	validateLLM(c, ve)
	validateRouter(c, ve)
	validateLogger(c, ve)
	validateTracer(c, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateLLM(cfg *Config, ve *ValidationError) {
	p := domain.Provider(cfg.LLM.Provider)
	if !p.Valid() {
		ve.Add("llm.provider %q is invalid (want: deepseek, openai, gemini, openrouter, custom)", cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		ve.Add("llm.model must not be empty")
	}
	if p == domain.ProviderCustom && cfg.LLM.CustomProviderID == "" {
		ve.Add("llm.custom_provider_id is required when provider is custom")
	}
	if cfg.LLM.MaxTokens < 0 {
		ve.Add("llm.max_tokens must be >= 0")
	}
	if t := cfg.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		ve.Add("llm.temperature must be between 0 and 2 (got %g)", *t)
	}
	if tp := cfg.LLM.TopP; tp != nil && (*tp <= 0 || *tp > 1) {
		ve.Add("llm.top_p must be in (0, 1] (got %g)", *tp)
	}
	if cfg.LLM.Breaker.Enabled && cfg.LLM.Breaker.MaxFailures == 0 {
		ve.Add("llm.breaker.max_failures must be > 0 when breaker is enabled")
	}
}

func validateRouter(cfg *Config, ve *ValidationError) {
	if cfg.Router.MaxHistory <= 0 {
		ve.Add("router.max_history must be > 0")
	}
	if cfg.Router.ContextWindow < 0 {
		ve.Add("router.context_window must be >= 0")
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "stdout", "noop":
	default:
		ve.Add("tracer.exporter %q is invalid (want: stdout, noop)", cfg.Tracer.Exporter)
	}
}
