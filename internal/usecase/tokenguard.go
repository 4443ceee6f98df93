package usecase

import (
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"promptmatrix/internal/domain"
)

// TokenGuard warns when a conversation approaches the configured context
// window. It never blocks a request; trimming is the router's job and the
// provider is the final authority on hard limits.
type TokenGuard struct {
	enc    *tiktoken.Tiktoken
	window int
	logger *slog.Logger
}

// NewTokenGuard creates a guard for the given context window. A window of
// zero disables the guard; the returned nil guard is safe to use.
func NewTokenGuard(window int, logger *slog.Logger) (*TokenGuard, error) {
	if window <= 0 {
		return nil, nil
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load token encoding: %w", err)
	}
	return &TokenGuard{enc: enc, window: window, logger: logger}, nil
}

// Check counts tokens across the history plus the new input and logs a
// warning past 90% of the window.
func (g *TokenGuard) Check(history []domain.Message, input string) {
	if g == nil {
		return
	}
	total := len(g.enc.Encode(input, nil, nil))
	for _, m := range history {
		total += len(g.enc.Encode(m.Content, nil, nil))
	}
	if total*10 > g.window*9 {
		g.logger.Warn("conversation approaching context window",
			"tokens", total, "window", g.window)
	}
}
