package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrProviderFailure    = errors.New("provider failure")
	ErrInternal           = errors.New("internal error")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidInput       = errors.New("invalid input")
)

// ProviderError captures a failure reported by an external collaborator.
// It matches ErrProviderFailure with errors.Is.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

// NewProviderError wraps err as a failure of the named provider. An empty
// message is replaced by the wrapped error text.
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Message: strings.TrimSpace(message), Err: err}
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "unknown error"
	}
	if e.Provider == "" {
		return msg
	}
	return e.Provider + ": " + msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderFailure}
	}
	return []error{ErrProviderFailure, e.Err}
}

// ProviderMessage extracts the user-facing message of a provider failure,
// falling back to fallback when err carries none.
func ProviderMessage(err error, fallback string) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Message != "" {
			return perr.Message
		}
		if perr.Err != nil {
			return perr.Err.Error()
		}
		return fallback
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
