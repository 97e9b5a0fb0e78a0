package model

import (
	"testing"
	"time"

	"github.com/slotcal/slotcal/internal/timeutil"
)

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("monday")
	if err != nil {
		t.Fatalf("ParseWeekday: %v", err)
	}
	if day != time.Monday {
		t.Fatalf("expected Monday, got %v", day)
	}
	if d, err := ParseWeekday("  SUNDAY "); err != nil || d != time.Sunday {
		t.Fatalf("case and whitespace should be tolerated, got %v %v", d, err)
	}
	if _, err := ParseWeekday("funday"); err == nil {
		t.Fatal("unknown day must fail")
	}
	if WeekdayName(time.Wednesday) != "wednesday" {
		t.Fatalf("WeekdayName wrong: %s", WeekdayName(time.Wednesday))
	}
}

func TestWindowValidate(t *testing.T) {
	ok := AvailabilityWindow{Day: time.Monday, Start: timeutil.Clock{Hour: 9}, End: timeutil.Clock{Hour: 17}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}
	inverted := AvailabilityWindow{Day: time.Monday, Start: timeutil.Clock{Hour: 17}, End: timeutil.Clock{Hour: 9}}
	if err := inverted.Validate(); err == nil {
		t.Fatal("inverted window must fail")
	}
	empty := AvailabilityWindow{Day: time.Monday, Start: timeutil.Clock{Hour: 9}, End: timeutil.Clock{Hour: 9}}
	if err := empty.Validate(); err == nil {
		t.Fatal("empty window must fail")
	}
}

func TestEventTypeDuration(t *testing.T) {
	ev := EventType{DurationMinutes: 45}
	if ev.Duration() != 45*time.Minute {
		t.Fatalf("expected 45m, got %s", ev.Duration())
	}
}
