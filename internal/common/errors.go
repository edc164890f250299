// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common application errors.
var (
	// Configuration errors.
	ErrConfiguration = errors.New("invalid configuration")

	// Caller input errors.
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("state token mismatch")

	// Provider errors.
	ErrTransport           = errors.New("provider transport error")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrAuthorizationFailed = errors.New("authorization request failed")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrSessionFailed       = errors.New("session_error")

	// Flow errors.
	ErrSelectionExpired = errors.New("account selection expired, restart the connection")
	ErrSyncInProgress   = errors.New("sync already running for account")

	// Database errors.
	ErrNotFound = errors.New("not found")
)

// ProviderError is a non-2xx answer from the banking API.
type ProviderError struct {
	Operation  string
	Body       string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Is reports ErrProviderRejected for every ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderRejected
}

// TransportError wraps failures that never produced an HTTP response.
type TransportError struct {
	Err       error
	Operation string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsFatal reports whether retrying err cannot succeed.
// Revoked or expired consent shows up as 401/403 from the account endpoints.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return !retryableErr.Retryable
	}

	if errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		switch {
		case providerErr.StatusCode == http.StatusTooManyRequests:
			return false
		case providerErr.StatusCode >= 400 && providerErr.StatusCode < 500:
			return true
		}
	}

	return false
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	return err != nil && !IsFatal(err)
}
