package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slotcal/slotcal/internal/availability"
	"github.com/slotcal/slotcal/internal/booking"
	"github.com/slotcal/slotcal/internal/model"
	"github.com/slotcal/slotcal/internal/outbox"
	"github.com/slotcal/slotcal/libs/db"
)

// BookingRepository persists bookings and doubles as the engine's
// availability.BusyProvider. The bookings table carries an exclusion
// constraint over tstzrange(start_time, end_time) per owner for confirmed
// rows, so overlapping concurrent inserts are linearized by Postgres itself.
type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

// BusyIntervals implements availability.BusyProvider: every confirmed booking
// overlapping [from, to), unmerged and in start order.
func (r *BookingRepository) BusyIntervals(ctx context.Context, ownerID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE owner_id = $1
			AND status = 'confirmed'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// InsertConfirmed implements booking.Store. The overlap re-check runs inside
// the same transaction as the insert; a racing commit that slips past the
// check still loses on the exclusion constraint. The confirmed event goes to
// the outbox in the same transaction, so it is visible exactly when the busy
// interval is.
func (r *BookingRepository) InsertConfirmed(ctx context.Context, b model.Booking) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var conflicting bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE owner_id = $1
				AND status = 'confirmed'
				AND start_time < $3
				AND end_time > $2
		)
	`, b.OwnerID, b.StartTime, b.EndTime).Scan(&conflicting)
	if err != nil {
		return model.Booking{}, err
	}
	if conflicting {
		return model.Booking{}, booking.ErrSlotTaken
	}

	b.ID = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, owner_id, event_type_id, guest_name, guest_email, guest_notes, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, b.ID, b.OwnerID, b.EventTypeID, b.GuestName, b.GuestEmail, b.GuestNotes,
		b.StartTime, b.EndTime, b.Status).Scan(&b.CreatedAt)
	if err != nil {
		if isPgCode(err, pgExclusionViolation) {
			return model.Booking{}, booking.ErrSlotTaken
		}
		if isPgCode(err, pgForeignKeyViolation) {
			return model.Booking{}, booking.ErrEventTypeUnavailable
		}
		return model.Booking{}, err
	}

	if err := r.insertBookingEvent(ctx, tx, outbox.EventBookingConfirmed, b); err != nil {
		return model.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Cancel implements booking.Store. Cancelling twice is a no-op; the first
// cancellation frees the interval for the engine immediately.
func (r *BookingRepository) Cancel(ctx context.Context, ownerID, bookingID string) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := r.getForUpdate(ctx, tx, ownerID, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Booking{}, booking.ErrNotFound
		}
		return model.Booking{}, err
	}
	if b.Status == model.BookingStatusCancelled {
		return b, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bookings SET status = 'cancelled' WHERE id = $1
	`, b.ID); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatusCancelled

	if err := r.insertBookingEvent(ctx, tx, outbox.EventBookingCancelled, b); err != nil {
		return model.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) getForUpdate(ctx context.Context, tx pgx.Tx, ownerID, bookingID string) (model.Booking, error) {
	var b model.Booking
	var eventTypeID *string
	err := tx.QueryRow(ctx, `
		SELECT id::text, owner_id, event_type_id::text, guest_name, guest_email, guest_notes,
			start_time, end_time, status, created_at
		FROM bookings
		WHERE owner_id = $1 AND id = $2
		FOR UPDATE
	`, ownerID, bookingID).Scan(
		&b.ID, &b.OwnerID, &eventTypeID, &b.GuestName, &b.GuestEmail, &b.GuestNotes,
		&b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	if eventTypeID != nil {
		b.EventTypeID = *eventTypeID
	}
	return b, nil
}

func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id, event_type_id::text, guest_name, guest_email, guest_notes,
			start_time, end_time, status, created_at
		FROM bookings
		WHERE owner_id = $1
			AND ($2::timestamptz IS NULL OR end_time > $2)
			AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time
	`, ownerID, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		var eventTypeID *string
		if err := rows.Scan(
			&b.ID, &b.OwnerID, &eventTypeID, &b.GuestName, &b.GuestEmail, &b.GuestNotes,
			&b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		if eventTypeID != nil {
			b.EventTypeID = *eventTypeID
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BookingRepository) insertBookingEvent(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id":    b.ID,
		"owner_id":      b.OwnerID,
		"event_type_id": b.EventTypeID,
		"guest_email":   b.GuestEmail,
		"start_time":    b.StartTime.UTC().Format(time.RFC3339),
		"end_time":      b.EndTime.UTC().Format(time.RFC3339),
		"status":        b.Status,
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
