package main

import (
	"testing"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"/var/lib/ledgersync/ledger.db", "/var/lib/ledgersync/ledger.db"},
		{"postgres://sync:hunter2@db:5432/ledger?sslmode=disable", "postgres://sync:xxxxx@db:5432/ledger?sslmode=disable"},
		{"postgres://db:5432/ledger", "postgres://db:5432/ledger"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, redactDSN(tt.dsn))
	}
}

func TestCallbackParams(t *testing.T) {
	cmd := consentCompleteCmd()

	params, err := callbackParams(cmd, []string{"https://example.com/cb?code=abc&state=s1"})
	require.NoError(t, err)
	assert.Equal(t, "abc", params.Code)
	assert.Equal(t, "s1", params.State)

	require.NoError(t, cmd.Flags().Set("code", "xyz"))
	_, err = callbackParams(cmd, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	require.NoError(t, cmd.Flags().Set("state", "s2"))
	require.NoError(t, cmd.Flags().Set("error", "access_denied"))
	params, err = callbackParams(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "xyz", params.Code)
	assert.Equal(t, "s2", params.State)
	assert.Equal(t, "access_denied", params.Error)
}

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"personal", "business"}, "Business"))
	assert.False(t, contains(nil, "personal"))
}

func TestRootCommands(t *testing.T) {
	want := []string{"institutions", "countries", "consent", "accounts", "sync", "serve", "migrate", "keygen", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
