// Package timeutil holds the wall-clock primitives the availability engine is
// built on: a date-less, zone-less HH:MM value and its projection onto a
// concrete calendar date in a concrete timezone.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidClock is returned for any wall-clock string that is not exactly
// two colon-separated numeric fields with hour in [0,24) and minute in [0,60).
// Malformed input is rejected at the boundary, never coerced.
var ErrInvalidClock = errors.New("invalid wall-clock time, want HH:MM")

// Clock is an hour:minute wall-clock value with no date or timezone attached.
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (Clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if hour < 0 || hour >= 24 || minute < 0 || minute >= 60 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Fraction renders the clock as hours-as-a-real-number ("09:30" -> 9.5),
// a cheap total order for window boundaries.
func (c Clock) Fraction() float64 {
	return float64(c.Hour) + float64(c.Minute)/60
}

// On anchors the clock to a calendar date in loc. time.Date resolves the
// UTC offset for that specific local time, so DST transitions on the date
// itself are honored; never reuse an offset computed from another date.
func (c Clock) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, 0, 0, loc)
}

// SameInstant reports whether two times name the same absolute instant,
// regardless of the zone they are rendered in.
func SameInstant(a, b time.Time) bool {
	return a.Equal(b)
}

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
