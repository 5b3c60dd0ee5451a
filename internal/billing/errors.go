package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("billing: checkout provider not configured")

	// ErrSessionNotFound is returned when the session does not exist.
	ErrSessionNotFound = errors.New("billing: checkout session not found")

	// ErrNoLineItems is returned when a session would have nothing to pay for.
	ErrNoLineItems = errors.New("billing: session has no line items")
)

// ProviderError wraps an API error with the provider's own code.
type ProviderError struct {
	Op         string
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("billing: %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("billing: %s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
