package domain

import (
	"fmt"
	"time"
)

// Wall-clock time of day, stored as seconds since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60)
}

// ClockOf returns the time of day of t in t's own location.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, fmt.Errorf("parse time of day: invalid value %q", s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Acceptable service window for a stop. Each bound is optional; an unset
// bound imposes no constraint.
type TimeWindow struct {
	MinStartTime *TimeOfDay `json:"min_start_time,omitempty"`
	MaxStartTime *TimeOfDay `json:"max_start_time,omitempty"`
	MinEndTime   *TimeOfDay `json:"min_end_time,omitempty"`
	MaxEndTime   *TimeOfDay `json:"max_end_time,omitempty"`
}

// Check reports whether a stop that starts at arrival and takes duration
// satisfies the window. On failure it returns the name of the first
// violated bound.
//
// Bounds are anchored to the arrival's day, so an end past midnight is later
// than every bound rather than wrapping to the next morning.
func (w TimeWindow) Check(arrival time.Time, duration time.Duration) (bool, string) {
	start := ClockOf(arrival)
	end := start + TimeOfDay(duration/time.Second)

	if w.MinStartTime != nil && start < *w.MinStartTime {
		return false, fmt.Sprintf("arrival %s before min_start_time %s", start, *w.MinStartTime)
	}
	if w.MaxStartTime != nil && start > *w.MaxStartTime {
		return false, fmt.Sprintf("arrival %s after max_start_time %s", start, *w.MaxStartTime)
	}
	if w.MinEndTime != nil && end < *w.MinEndTime {
		return false, fmt.Sprintf("end %s before min_end_time %s", end, *w.MinEndTime)
	}
	if w.MaxEndTime != nil && end > *w.MaxEndTime {
		return false, fmt.Sprintf("end %s after max_end_time %s", end, *w.MaxEndTime)
	}

	return true, ""
}
