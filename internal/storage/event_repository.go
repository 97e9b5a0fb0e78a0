package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slotcal/slotcal/internal/booking"
	"github.com/slotcal/slotcal/internal/model"
	"github.com/slotcal/slotcal/libs/db"
)

type EventTypeRepository struct {
	pool *db.Pool
}

func NewEventTypeRepository(pool *db.Pool) *EventTypeRepository {
	return &EventTypeRepository{pool: pool}
}

const eventTypeColumns = `id::text, owner_id, name, description, category, link, duration_minutes, is_active, created_at, updated_at`

func scanEventType(row pgx.Row) (model.EventType, error) {
	var ev model.EventType
	err := row.Scan(&ev.ID, &ev.OwnerID, &ev.Name, &ev.Description, &ev.Category, &ev.Link,
		&ev.DurationMinutes, &ev.IsActive, &ev.CreatedAt, &ev.UpdatedAt)
	return ev, err
}

func (r *EventTypeRepository) Create(ctx context.Context, ev *model.EventType) error {
	ev.ID = uuid.NewString()
	return r.pool.QueryRow(ctx, `
		INSERT INTO event_types (id, owner_id, name, description, category, link, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, ev.ID, ev.OwnerID, ev.Name, ev.Description, ev.Category, ev.Link, ev.DurationMinutes, ev.IsActive).
		Scan(&ev.CreatedAt, &ev.UpdatedAt)
}

func (r *EventTypeRepository) GetByID(ctx context.Context, ownerID, id string) (model.EventType, error) {
	return scanEventType(r.pool.QueryRow(ctx, `
		SELECT `+eventTypeColumns+`
		FROM event_types
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id))
}

// GetActive implements booking.EventTypeStore: missing, foreign, and inactive
// event types are indistinguishable to the caller.
func (r *EventTypeRepository) GetActive(ctx context.Context, ownerID, id string) (model.EventType, error) {
	ev, err := scanEventType(r.pool.QueryRow(ctx, `
		SELECT `+eventTypeColumns+`
		FROM event_types
		WHERE owner_id = $1 AND id = $2 AND is_active
	`, ownerID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.EventType{}, booking.ErrEventTypeUnavailable
	}
	return ev, err
}

func (r *EventTypeRepository) list(ctx context.Context, query, ownerID string) ([]model.EventType, error) {
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EventType
	for rows.Next() {
		ev, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *EventTypeRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.EventType, error) {
	return r.list(ctx, `
		SELECT `+eventTypeColumns+`
		FROM event_types
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
}

// ListActive returns only the event types visitors may see and book.
func (r *EventTypeRepository) ListActive(ctx context.Context, ownerID string) ([]model.EventType, error) {
	return r.list(ctx, `
		SELECT `+eventTypeColumns+`
		FROM event_types
		WHERE owner_id = $1 AND is_active
		ORDER BY created_at DESC
	`, ownerID)
}

func (r *EventTypeRepository) Update(ctx context.Context, ev *model.EventType) error {
	return r.pool.QueryRow(ctx, `
		UPDATE event_types
		SET name = $3,
			description = $4,
			category = $5,
			link = $6,
			duration_minutes = $7,
			is_active = $8,
			updated_at = now()
		WHERE owner_id = $1 AND id = $2
		RETURNING updated_at
	`, ev.OwnerID, ev.ID, ev.Name, ev.Description, ev.Category, ev.Link, ev.DurationMinutes, ev.IsActive).
		Scan(&ev.UpdatedAt)
}

// Delete is immediate and unconditional. Existing bookings keep their record
// (the FK nulls out); an insert racing the delete fails its FK check instead.
func (r *EventTypeRepository) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM event_types WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
