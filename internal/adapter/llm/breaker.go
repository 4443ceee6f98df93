package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"promptmatrix/internal/domain"
	"promptmatrix/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// chatBreaker guards blocking completion calls. When the provider fails
// repeatedly the circuit opens and subsequent calls fail fast without
// reaching the provider, preventing retry storms.
type chatBreaker struct {
	cb *gobreaker.CircuitBreaker[*domain.ChatResult]
}

func newChatBreaker(cfg config.BreakerConfig, logger *slog.Logger) *chatBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.ChatResult](gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &chatBreaker{cb: cb}
}

func (b *chatBreaker) execute(provider string, call func() (*domain.ChatResult, error)) (*domain.ChatResult, error) {
	result, err := b.cb.Execute(call)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("provider %q circuit open: %w", provider, err)
		}
		return nil, err
	}
	return result, nil
}

// State returns the current breaker state for monitoring.
func (b *chatBreaker) State() gobreaker.State {
	return b.cb.State()
}
