package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Veraticus/ledgersync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

func TestWithRetry(t *testing.T) {
	transient := &TransportError{Operation: "get_balances", Err: errors.New("connection reset")}

	tests := []struct {
		failWith     func(attempt int) error
		wantIs       error
		name         string
		wantAttempts int
		wantErr      bool
	}{
		{
			name:         "succeeds first time",
			failWith:     func(int) error { return nil },
			wantAttempts: 1,
		},
		{
			name: "recovers on third attempt",
			failWith: func(attempt int) error {
				if attempt < 3 {
					return transient
				}
				return nil
			},
			wantAttempts: 3,
		},
		{
			name:         "gives up after max attempts",
			failWith:     func(int) error { return transient },
			wantAttempts: 3,
			wantErr:      true,
			wantIs:       ErrMaxRetries,
		},
		{
			name:         "fatal provider rejection stops immediately",
			failWith:     func(int) error { return &ProviderError{Operation: "get_transactions", StatusCode: http.StatusUnauthorized} },
			wantAttempts: 1,
			wantErr:      true,
			wantIs:       ErrProviderRejected,
		},
		{
			name:         "marked fatal stops immediately",
			failWith:     func(int) error { return Fatal(errors.New("nope")) },
			wantAttempts: 1,
			wantErr:      true,
		},
		{
			name: "rate limit is retried",
			failWith: func(attempt int) error {
				if attempt == 1 {
					return fmt.Errorf("%w: %w", ErrRateLimit, &ProviderError{StatusCode: http.StatusTooManyRequests})
				}
				return nil
			},
			wantAttempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := WithRetry(context.Background(), func(_ context.Context, attempt int) error {
				attempts++
				assert.Equal(t, attempts, attempt)
				return tt.failWith(attempt)
			}, fastRetry)

			assert.Equal(t, tt.wantAttempts, attempts)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestWithRetry_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := WithRetry(ctx, func(context.Context, int) error {
		attempts++
		cancel()
		return &TransportError{Operation: "get_balances", Err: errors.New("timeout")}
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Minute})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_Defaults(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(context.Context, int) error {
		attempts++
		return Fatal(errors.New("stop"))
	}, service.RetryOptions{})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	opts := service.RetryOptions{}.WithDefaults()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, opts.InitialDelay)
}
