// Package scheduler runs the daily account sync: a persisted fleet sweep
// that fans out jittered per-account jobs onto a bounded worker pool.
package scheduler

import (
	"fmt"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
)

// ScheduleTime represents a specific time of day when the sweep should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return ScheduleTime{}, fmt.Errorf("%w: invalid time format %q (expected HH:MM): %w", common.ErrConfiguration, s, err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("%w: invalid hour: %d (must be 0-23)", common.ErrConfiguration, hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("%w: invalid minute: %d (must be 0-59)", common.ErrConfiguration, minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// Next returns the first occurrence strictly after t, in t's location.
func (st ScheduleTime) Next(t time.Time) time.Time {
	candidate := time.Date(t.Year(), t.Month(), t.Day(), st.Hour, st.Minute, 0, 0, t.Location())
	if candidate.After(t) {
		return candidate
	}
	tomorrow := t.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), st.Hour, st.Minute, 0, 0, t.Location())
}
