// Package booking implements the commit path: the one mutating operation in
// the system. Every write is fail-closed; racing commits over overlapping
// intervals are linearized by the store so at most one wins.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/slotcal/slotcal/internal/availability"
	"github.com/slotcal/slotcal/internal/model"
)

var (
	// ErrSlotTaken means the requested interval is no longer free — either a
	// concurrent booking won, or the slot was never inside the owner's
	// availability. The visitor should re-resolve and pick another time.
	ErrSlotTaken = errors.New("slot no longer available")

	// ErrEventTypeUnavailable means the referenced event type does not exist,
	// belongs to another owner, or is inactive. Nothing is written.
	ErrEventTypeUnavailable = errors.New("event type unavailable")

	// ErrInvalidSlot covers malformed requests: empty interval, wrong
	// duration for the event type, or a start in the past.
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrNotFound is returned by cancellation for an unknown booking.
	ErrNotFound = errors.New("booking not found")
)

// EventTypeStore resolves an owner's active event type.
type EventTypeStore interface {
	GetActive(ctx context.Context, ownerID, eventTypeID string) (model.EventType, error)
}

// Store persists bookings. InsertConfirmed must be atomic with respect to
// overlap checking: of any set of concurrent calls with overlapping intervals
// for one owner, exactly one succeeds and the rest return ErrSlotTaken.
type Store interface {
	InsertConfirmed(ctx context.Context, b model.Booking) (model.Booking, error)
	Cancel(ctx context.Context, ownerID, bookingID string) (model.Booking, error)
}

type CommitRequest struct {
	OwnerID     string
	EventTypeID string
	Slot        availability.Interval
	GuestName   string
	GuestEmail  string
	GuestNotes  string
}

type Service struct {
	Events    EventTypeStore
	Schedules availability.ScheduleProvider
	Store     Store
	Logger    *slog.Logger
	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

var tracer = otel.Tracer("slotcal/booking")

// Commit validates the chosen slot against the event type and the owner's
// availability, then performs the atomic insert. No busy interval is written
// on any error branch.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (model.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.String("event_type_id", req.EventTypeID),
	)

	req.GuestName = strings.TrimSpace(req.GuestName)
	req.GuestEmail = strings.TrimSpace(req.GuestEmail)
	if req.GuestName == "" || req.GuestEmail == "" {
		return model.Booking{}, fmt.Errorf("%w: guest name and email required", ErrInvalidSlot)
	}
	if !req.Slot.IsValid() {
		return model.Booking{}, fmt.Errorf("%w: end must be after start", ErrInvalidSlot)
	}
	if !req.Slot.Start.After(s.now()) {
		return model.Booking{}, fmt.Errorf("%w: slot start is in the past", ErrInvalidSlot)
	}

	ev, err := s.Events.GetActive(ctx, req.OwnerID, req.EventTypeID)
	if err != nil {
		if errors.Is(err, ErrEventTypeUnavailable) {
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("load event type: %w", err)
	}
	if req.Slot.Duration() != ev.Duration() {
		return model.Booking{}, fmt.Errorf("%w: slot length %s does not match event duration %s",
			ErrInvalidSlot, req.Slot.Duration(), ev.Duration())
	}

	// The slot must be one the engine could have offered. A schedule that
	// disappeared or never contained the interval reads as a lost race.
	sched, err := s.Schedules.GetSchedule(ctx, req.OwnerID)
	if err != nil {
		if errors.Is(err, availability.ErrNoSchedule) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, fmt.Errorf("load schedule: %w", err)
	}
	contained, err := availability.WindowsContain(sched, req.Slot)
	if err != nil {
		return model.Booking{}, err
	}
	if !contained {
		return model.Booking{}, ErrSlotTaken
	}

	booking, err := s.Store.InsertConfirmed(ctx, model.Booking{
		OwnerID:     req.OwnerID,
		EventTypeID: ev.ID,
		GuestName:   req.GuestName,
		GuestEmail:  req.GuestEmail,
		GuestNotes:  strings.TrimSpace(req.GuestNotes),
		StartTime:   req.Slot.Start,
		EndTime:     req.Slot.End,
		Status:      model.BookingStatusConfirmed,
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrEventTypeUnavailable) {
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Info("booking confirmed",
			"booking_id", booking.ID,
			"owner_id", booking.OwnerID,
			"event_type_id", booking.EventTypeID,
			"start", booking.StartTime.UTC().Format(time.RFC3339),
		)
	}
	return booking, nil
}

// Cancel flips a confirmed booking to cancelled. Cancelling an already
// cancelled booking is a no-op returning the current record.
func (s *Service) Cancel(ctx context.Context, ownerID, bookingID string) (model.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.cancel")
	defer span.End()

	booking, err := s.Store.Cancel(ctx, ownerID, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if s.Logger != nil {
		s.Logger.Info("booking cancelled", "booking_id", booking.ID, "owner_id", booking.OwnerID)
	}
	return booking, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
