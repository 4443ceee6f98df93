package domain

import "fmt"

// Sentinel errors for the domain layer. Wrap with fmt.Errorf("%w") to add
// context; match with errors.Is.
var (
	ErrAgentNotFound       = fmt.Errorf("agent not found")
	ErrNotInitialized      = fmt.Errorf("completion client not initialized")
	ErrUnsupportedProvider = fmt.Errorf("unsupported provider")
	ErrProviderNotFound    = fmt.Errorf("custom provider not found")
	ErrTemplateNotFound    = fmt.Errorf("flow template not found")
	ErrInvalidInput        = fmt.Errorf("invalid input")
	ErrRateLimit           = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid         = fmt.Errorf("authentication failed")
)

// WrapOp adds operation context to an error. Returns nil if err is nil,
// enabling idiomatic use: return domain.WrapOp("route", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
