package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/Veraticus/ledgersync/internal/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedirect = "https://ledger.example/enable_banking/callback"

func newTestManager(t *testing.T, provider enablebanking.Authorizer, now time.Time) *Manager {
	t.Helper()
	m, err := NewManager(provider, testRedirect)
	require.NoError(t, err)
	m.now = func() time.Time { return now }
	return m
}

func validRequest() InitiateRequest {
	return InitiateRequest{
		InstitutionID:      "nordea-fi",
		InstitutionName:    "Nordea",
		InstitutionCountry: "FI",
		PSUType:            "personal",
		AuthMethod:         "redirect",
	}
}

func TestNewManager_RedirectURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://x.example/cb", "/relative", "https://"} {
		_, err := NewManager(enablebanking.NewMockClient(), raw)
		assert.ErrorIs(t, err, common.ErrConfiguration, raw)
	}
}

func TestInitiate(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		wantExpiry   time.Time
		name         string
		validityDays int
	}{
		{name: "requested validity below cap", validityDays: 30, wantExpiry: now.AddDate(0, 0, 30)},
		{name: "requested validity above cap", validityDays: 120, wantExpiry: now.Add(90 * 24 * time.Hour)},
		{name: "no validity requested", validityDays: 0, wantExpiry: now.Add(90 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := enablebanking.NewMockClient()
			m := newTestManager(t, provider, now)

			req := validRequest()
			req.MaxConsentValidityDays = tt.validityDays

			started, err := m.Initiate(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantExpiry, started.Consent.ExpiresAt)
			assert.Equal(t, started.State, started.Consent.RequestID)
			assert.Contains(t, started.RedirectURL, started.State)

			require.Len(t, provider.CreateAuthorizationCalls, 1)
			call := provider.CreateAuthorizationCalls[0]
			assert.Equal(t, testRedirect, call.RedirectURL)
			assert.Equal(t, started.State, call.State)
			assert.Equal(t, tt.wantExpiry.Format(time.RFC3339), call.Access.ValidUntil)
			assert.Equal(t, enablebanking.ASPSP{Name: "Nordea", Country: "FI"}, call.ASPSP)
		})
	}
}

func TestInitiate_StateIsFreshPerAttempt(t *testing.T) {
	m := newTestManager(t, enablebanking.NewMockClient(), time.Now())

	first, err := m.Initiate(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := m.Initiate(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first.State, second.State)
	assert.Len(t, first.State, 36)
}

func TestInitiate_Validation(t *testing.T) {
	tests := []struct {
		mutate func(*InitiateRequest)
		name   string
	}{
		{name: "missing institution", mutate: func(r *InitiateRequest) { r.InstitutionName = "" }},
		{name: "missing country", mutate: func(r *InitiateRequest) { r.InstitutionCountry = "" }},
		{name: "bad country", mutate: func(r *InitiateRequest) { r.InstitutionCountry = "FIN" }},
		{name: "bad psu type", mutate: func(r *InitiateRequest) { r.PSUType = "robot" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := enablebanking.NewMockClient()
			m := newTestManager(t, provider, time.Now())

			req := validRequest()
			tt.mutate(&req)

			_, err := m.Initiate(context.Background(), req)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Empty(t, provider.CreateAuthorizationCalls)
		})
	}
}

func TestInitiate_UpstreamFailure(t *testing.T) {
	provider := enablebanking.NewMockClient()
	provider.CreateAuthorizationFn = func(context.Context, enablebanking.AuthorizationRequest) (*enablebanking.AuthorizationResponse, error) {
		return nil, &common.ProviderError{Operation: "create authorization", StatusCode: 400, Body: "bad aspsp"}
	}
	m := newTestManager(t, provider, time.Now())

	started, err := m.Initiate(context.Background(), validRequest())
	assert.Nil(t, started)
	assert.ErrorIs(t, err, common.ErrAuthorizationFailed)
	assert.ErrorIs(t, err, common.ErrProviderRejected)
}

func TestValidateState(t *testing.T) {
	tests := []struct {
		name   string
		got    string
		stored string
		want   bool
	}{
		{name: "match", got: "abc", stored: "abc", want: true},
		{name: "mismatch", got: "abc", stored: "abd", want: false},
		{name: "empty callback", got: "", stored: "abc", want: false},
		{name: "nothing stored", got: "abc", stored: "", want: false},
		{name: "both empty", got: "", stored: "", want: false},
		{name: "prefix", got: "ab", stored: "abc", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateState(tt.got, tt.stored))
		})
	}
}

func TestExchange_Complete(t *testing.T) {
	t.Run("blank code makes no call", func(t *testing.T) {
		provider := enablebanking.NewMockClient()
		ex := NewExchange(provider, selection.NewMemoryCache(0))

		_, err := ex.Complete(context.Background(), "  ")
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Empty(t, provider.ExchangeCodeCalls)
	})

	t.Run("provider failure is a session error", func(t *testing.T) {
		provider := enablebanking.NewMockClient()
		provider.ExchangeCodeFn = func(context.Context, string) (*enablebanking.Session, error) {
			return nil, &common.ProviderError{Operation: "create session", StatusCode: 422, Body: "code used"}
		}
		ex := NewExchange(provider, selection.NewMemoryCache(0))

		_, err := ex.Complete(context.Background(), "code")
		assert.ErrorIs(t, err, common.ErrSessionFailed)
		assert.False(t, errors.Is(err, common.ErrAuthorizationDenied))
	})
}

func TestExchange_CompleteCallback(t *testing.T) {
	stored := model.ConsentRequest{RequestID: "state-1", InstitutionName: "Nordea"}

	newExchange := func(t *testing.T) (*Exchange, *enablebanking.MockClient, *selection.MemoryCache) {
		t.Helper()
		provider := enablebanking.NewMockClient()
		provider.ExchangeCodeFn = func(_ context.Context, code string) (*enablebanking.Session, error) {
			return &enablebanking.Session{
				SessionID: "sess-" + code,
				Accounts: []enablebanking.SessionAccount{
					{UID: "acc-1", Name: "Checking", Currency: "EUR"},
				},
			}, nil
		}
		cache := selection.NewMemoryCache(0)
		t.Cleanup(cache.Close)
		return NewExchange(provider, cache), provider, cache
	}

	t.Run("success caches accounts", func(t *testing.T) {
		ex, _, cache := newExchange(t)

		key, pending, err := ex.CompleteCallback(context.Background(),
			CallbackParams{Code: "c1", State: "state-1"}, stored)
		require.NoError(t, err)
		assert.Equal(t, "sess-c1", pending.SessionID)
		assert.Equal(t, "Nordea", pending.InstitutionName)

		sel, err := cache.TakeOnce(context.Background(), key)
		require.NoError(t, err)
		require.Len(t, sel.Accounts, 1)
		assert.Equal(t, "acc-1", sel.Accounts[0].UID)
	})

	t.Run("wrong state stops before the provider", func(t *testing.T) {
		ex, provider, cache := newExchange(t)

		_, _, err := ex.CompleteCallback(context.Background(),
			CallbackParams{Code: "c1", State: "forged"}, stored)
		assert.ErrorIs(t, err, common.ErrInvalidState)
		assert.Empty(t, provider.ExchangeCodeCalls)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("expired consent stops before the provider", func(t *testing.T) {
		ex, provider, cache := newExchange(t)
		expired := stored
		expired.ExpiresAt = time.Now().Add(-time.Minute)

		_, _, err := ex.CompleteCallback(context.Background(),
			CallbackParams{Code: "c1", State: "state-1"}, expired)
		assert.ErrorIs(t, err, common.ErrInvalidState)
		assert.Contains(t, err.Error(), "expired")
		assert.Empty(t, provider.ExchangeCodeCalls)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("denied by user", func(t *testing.T) {
		ex, provider, _ := newExchange(t)

		_, _, err := ex.CompleteCallback(context.Background(),
			CallbackParams{State: "state-1", Error: "access_denied"}, stored)
		assert.ErrorIs(t, err, common.ErrAuthorizationDenied)
		assert.Contains(t, err.Error(), "access_denied")
		assert.Empty(t, provider.ExchangeCodeCalls)
	})
}

func TestParseCallbackURL(t *testing.T) {
	params, err := ParseCallbackURL("https://ledger.example/enable_banking/callback?code=abc&state=s1")
	require.NoError(t, err)
	assert.Equal(t, CallbackParams{Code: "abc", State: "s1"}, params)

	params, err = ParseCallbackURL("https://ledger.example/cb?state=s1&error=access_denied&error_description=User+cancelled")
	require.NoError(t, err)
	assert.Equal(t, "access_denied", params.Error)
	assert.Equal(t, "User cancelled", params.ErrorDescription)

	_, err = ParseCallbackURL("https://[::1")
	assert.ErrorIs(t, err, common.ErrValidation)
}
