package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsentExpiry(t *testing.T) {
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		want         time.Time
		validityDays int
	}{
		{
			name:         "within limit",
			validityDays: 30,
			want:         created.AddDate(0, 0, 30),
		},
		{
			name:         "exactly ninety days",
			validityDays: 90,
			want:         created.Add(MaxConsentValidity),
		},
		{
			name:         "capped at ninety days",
			validityDays: 120,
			want:         created.Add(MaxConsentValidity),
		},
		{
			name:         "huge request does not wrap",
			validityDays: math.MaxInt,
			want:         created.Add(MaxConsentValidity),
		},
		{
			name:         "zero means maximum",
			validityDays: 0,
			want:         created.Add(MaxConsentValidity),
		},
		{
			name:         "negative means maximum",
			validityDays: -5,
			want:         created.Add(MaxConsentValidity),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConsentExpiry(created, tt.validityDays))
		})
	}
}

func TestConsentRequest_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, (&ConsentRequest{}).Expired(now))
	assert.False(t, (&ConsentRequest{ExpiresAt: now.Add(time.Hour)}).Expired(now))
	assert.True(t, (&ConsentRequest{ExpiresAt: now.Add(-time.Second)}).Expired(now))
}

func TestLinkedAccount_SyncWindowStart(t *testing.T) {
	now := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	lookback := 30 * 24 * time.Hour

	t.Run("never synced uses lookback", func(t *testing.T) {
		acc := &LinkedAccount{}
		assert.Equal(t, now.Add(-lookback), acc.SyncWindowStart(now, lookback))
	})

	t.Run("checkpoint wins", func(t *testing.T) {
		last := now.Add(-36 * time.Hour)
		acc := &LinkedAccount{LastSyncedAt: &last}
		assert.Equal(t, last, acc.SyncWindowStart(now, lookback))
	})
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoney("123.45", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "123.45 EUR", m.String())
	assert.Equal(t, "-123.45 EUR", m.Neg().String())

	other, err := NewMoney("123.450", "EUR")
	require.NoError(t, err)
	assert.True(t, m.Equal(other))

	usd, err := NewMoney("123.45", "USD")
	require.NoError(t, err)
	assert.False(t, m.Equal(usd))

	_, err = NewMoney("twelve", "EUR")
	assert.Error(t, err)
}

func TestGenerateExternalID(t *testing.T) {
	date := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	amount, err := NewMoney("-9.99", "EUR")
	require.NoError(t, err)

	id := GenerateExternalID(date, amount, "COFFEE")
	assert.Equal(t, id, GenerateExternalID(date, amount, "COFFEE"))
	assert.Len(t, id, len("gen-")+32)
	assert.NotEqual(t, id, GenerateExternalID(date, amount, "TEA"))
	assert.NotEqual(t, id, GenerateExternalID(date.AddDate(0, 0, 1), amount, "COFFEE"))
}

func TestPendingSelection_Find(t *testing.T) {
	sel := &PendingSelection{Accounts: []AccountSummary{{UID: "a"}, {UID: "b", Name: "Savings"}}}

	acc, ok := sel.Find("b")
	require.True(t, ok)
	assert.Equal(t, "Savings", acc.Name)

	_, ok = sel.Find("c")
	assert.False(t, ok)
}
