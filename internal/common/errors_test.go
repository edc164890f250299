package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "configuration", err: fmt.Errorf("load: %w", ErrConfiguration), want: true},
		{name: "validation", err: ErrValidation, want: true},
		{name: "state mismatch", err: ErrInvalidState, want: true},
		{name: "malformed response", err: ErrMalformedResponse, want: true},
		{name: "not found", err: ErrNotFound, want: true},
		{name: "canceled", err: context.Canceled, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "unauthorized", err: &ProviderError{StatusCode: http.StatusUnauthorized}, want: true},
		{name: "forbidden", err: &ProviderError{StatusCode: http.StatusForbidden}, want: true},
		{name: "rate limited", err: &ProviderError{StatusCode: http.StatusTooManyRequests}, want: false},
		{name: "bad gateway", err: &ProviderError{StatusCode: http.StatusBadGateway}, want: false},
		{name: "transport", err: &TransportError{Err: errors.New("reset")}, want: false},
		{name: "explicitly fatal", err: Fatal(errors.New("x")), want: true},
		{name: "explicitly retryable", err: &RetryableError{Err: ErrValidation, Retryable: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
			assert.Equal(t, tt.err != nil && !tt.want, IsRetryable(tt.err))
		})
	}
}

func TestProviderError_Is(t *testing.T) {
	err := fmt.Errorf("get_balances: %w", &ProviderError{Operation: "get_balances", StatusCode: 500, Body: "boom"})

	assert.ErrorIs(t, err, ErrProviderRejected)

	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 500, pe.StatusCode)
	assert.Contains(t, err.Error(), "status 500: boom")
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &TransportError{Operation: "list_aspsps", Err: inner}

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not reach the bank", ErrTransport)
	assert.Equal(t, "could not reach the bank: provider transport error", err.Error())
	assert.ErrorIs(t, err, ErrTransport)

	assert.Equal(t, "just a message", NewUserError("just a message", nil).Error())
}
