package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func tod(h, m int) *TimeOfDay {
	v := NewTimeOfDay(h, m)
	return &v
}

func TestTimeWindowCheck(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	w := TimeWindow{MinStartTime: tod(9, 0), MaxStartTime: tod(9, 30), MaxEndTime: tod(9, 45)}

	tests := []struct {
		name     string
		arrival  time.Time
		duration time.Duration
		want     bool
	}{
		{"inside", at(9, 10), 10 * time.Minute, true},
		{"too early", at(8, 50), 5 * time.Minute, false},
		{"too late", at(9, 31), 5 * time.Minute, false},
		{"finishes late", at(9, 30), 20 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := w.Check(tt.arrival, tt.duration)
			if ok != tt.want {
				t.Fatalf("Check = %v (%s), want %v", ok, reason, tt.want)
			}
			if !ok && reason == "" {
				t.Fatalf("expected a reason for the failure")
			}
		})
	}

	if ok, _ := (TimeWindow{}).Check(at(3, 0), time.Hour); !ok {
		t.Fatalf("empty window should accept any arrival")
	}
}

func TestTimeWindowCheckAcrossMidnight(t *testing.T) {
	arrival := time.Date(2026, 3, 2, 23, 50, 0, 0, time.UTC)

	late := TimeWindow{MaxEndTime: tod(23, 59)}
	if ok, _ := late.Check(arrival, 20*time.Minute); ok {
		t.Fatalf("stop ending at 00:10 next day fits max_end_time 23:59")
	}

	early := TimeWindow{MinEndTime: tod(23, 55)}
	if ok, reason := early.Check(arrival, 20*time.Minute); !ok {
		t.Fatalf("stop ending after midnight fails min_end_time 23:55: %s", reason)
	}
}

func TestTimeOfDayText(t *testing.T) {
	var w TimeWindow
	if err := json.Unmarshal([]byte(`{"min_start_time":"08:15","max_end_time":"17:00:30"}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if *w.MinStartTime != NewTimeOfDay(8, 15) {
		t.Fatalf("min_start_time = %s", w.MinStartTime)
	}
	if w.MaxEndTime.String() != "17:00:30" {
		t.Fatalf("max_end_time = %s", w.MaxEndTime)
	}
	if w.MaxStartTime != nil {
		t.Fatalf("max_start_time should be unset")
	}

	if _, err := ParseTimeOfDay("25:99"); err == nil {
		t.Fatalf("expected parse error")
	}
}
