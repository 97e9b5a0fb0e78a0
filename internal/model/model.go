package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/slotcal/slotcal/internal/timeutil"
)

// ParseWeekday accepts the lowercase day names used on the wire and in the
// schedule table ("monday".."sunday").
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("unknown day of week %q", s)
	}
}

func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// AvailabilityWindow is one recurring bookable interval. Start and End are
// wall-clock times in the owning schedule's timezone; Start < End, so an
// overnight span is stored as two windows.
type AvailabilityWindow struct {
	Day   time.Weekday
	Start timeutil.Clock
	End   timeutil.Clock
}

func (w AvailabilityWindow) Validate() error {
	if w.Start.Fraction() >= w.End.Fraction() {
		return fmt.Errorf("window %s %s-%s: start must be before end", WeekdayName(w.Day), w.Start, w.End)
	}
	return nil
}

// Schedule is an owner's weekly availability pattern. At most one exists per
// owner; its window set is replaced wholesale on update.
type Schedule struct {
	OwnerID   string
	Timezone  string
	Windows   []AvailabilityWindow
	UpdatedAt time.Time
}

// Location loads the schedule's IANA timezone.
func (s Schedule) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// EventType is a bookable meeting template. Only active types are offered to
// visitors; inactive ones stay editable by the owner.
type EventType struct {
	ID              string
	OwnerID         string
	Name            string
	Description     string
	Category        string
	Link            string
	DurationMinutes int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e EventType) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking is a committed slot. Confirmed bookings are the busy intervals the
// resolution engine subtracts from availability.
type Booking struct {
	ID          string
	OwnerID     string
	EventTypeID string
	GuestName   string
	GuestEmail  string
	GuestNotes  string
	StartTime   time.Time
	EndTime     time.Time
	Status      string
	CreatedAt   time.Time
}
