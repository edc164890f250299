package scheduler

import (
	"testing"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ScheduleTime
		wantErr bool
	}{
		{name: "midnight", input: "00:00", want: ScheduleTime{Hour: 0, Minute: 0}},
		{name: "afternoon", input: "14:30", want: ScheduleTime{Hour: 14, Minute: 30}},
		{name: "single digits", input: "6:05", want: ScheduleTime{Hour: 6, Minute: 5}},
		{name: "bad hour", input: "24:00", wantErr: true},
		{name: "bad minute", input: "12:60", wantErr: true},
		{name: "garbage", input: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleTime_Next(t *testing.T) {
	midnight := ScheduleTime{}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
		at   ScheduleTime
	}{
		{
			name: "midnight from the evening",
			at:   midnight,
			now:  time.Date(2026, 3, 10, 22, 15, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at run time moves to tomorrow",
			at:   midnight,
			now:  time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "later today",
			at:   ScheduleTime{Hour: 6, Minute: 30},
			now:  time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 6, 30, 0, 0, time.UTC),
		},
		{
			name: "month rollover",
			at:   midnight,
			now:  time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.at.Next(tt.now))
		})
	}
	assert.Equal(t, "06:05", ScheduleTime{Hour: 6, Minute: 5}.String())
}
