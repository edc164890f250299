package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Flush(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, "Name", "Balance")
	table.Row("Checking", "100.00 EUR")
	table.Row("Savings")

	assert.Equal(t, 2, table.Len())
	require.NoError(t, table.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, lines[0], "Balance")
	assert.Contains(t, lines[1], "────")
	assert.Contains(t, lines[2], "100.00 EUR")
	assert.Equal(t, "Savings", strings.TrimSpace(lines[3]))
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		format func(string) string
		icon   string
	}{
		{FormatSuccess, SuccessIcon},
		{FormatError, ErrorIcon},
		{FormatWarning, WarningIcon},
		{FormatInfo, InfoIcon},
		{FormatTitle, BankIcon},
	}
	for _, tt := range tests {
		out := tt.format("linked 2 accounts")
		assert.Contains(t, out, tt.icon)
		assert.Contains(t, out, "linked 2 accounts")
	}

	box := RenderBox("Sync complete", "3 new transactions")
	assert.Contains(t, box, "Sync complete")
	assert.Contains(t, box, "3 new transactions")
}

func TestNewProgress(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgress(&buf, 2, "Syncing accounts")
	require.NoError(t, bar.Add(1))
	require.NoError(t, bar.Add(1))
	assert.True(t, bar.IsFinished())
}
