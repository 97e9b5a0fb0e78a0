package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slotcal/slotcal/internal/availability"
	"github.com/slotcal/slotcal/internal/model"
	"github.com/slotcal/slotcal/internal/timeutil"
	"github.com/slotcal/slotcal/libs/db"
)

// ScheduleRepository persists the one-per-owner availability schedule and its
// weekly windows. Window times are stored as HH:MM text in the schedule's
// timezone, matching the wall-clock model.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// GetSchedule implements availability.ScheduleProvider.
func (r *ScheduleRepository) GetSchedule(ctx context.Context, ownerID string) (model.Schedule, error) {
	var sched model.Schedule
	err := r.pool.QueryRow(ctx, `
		SELECT owner_id, timezone, updated_at
		FROM schedules
		WHERE owner_id = $1
	`, ownerID).Scan(&sched.OwnerID, &sched.Timezone, &sched.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Schedule{}, availability.ErrNoSchedule
		}
		return model.Schedule{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, start_time, end_time
		FROM schedule_windows
		WHERE owner_id = $1
		ORDER BY day_of_week, start_time
	`, ownerID)
	if err != nil {
		return model.Schedule{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var day int
		var startRaw, endRaw string
		if err := rows.Scan(&day, &startRaw, &endRaw); err != nil {
			return model.Schedule{}, err
		}
		start, err := timeutil.ParseClock(startRaw)
		if err != nil {
			return model.Schedule{}, fmt.Errorf("stored window start: %w", err)
		}
		end, err := timeutil.ParseClock(endRaw)
		if err != nil {
			return model.Schedule{}, fmt.Errorf("stored window end: %w", err)
		}
		sched.Windows = append(sched.Windows, model.AvailabilityWindow{
			Day:   time.Weekday(day),
			Start: start,
			End:   end,
		})
	}
	if rows.Err() != nil {
		return model.Schedule{}, rows.Err()
	}
	return sched, nil
}

// Replace lazily creates the owner's schedule row and swaps its window set
// wholesale, in one transaction.
func (r *ScheduleRepository) Replace(ctx context.Context, sched model.Schedule) error {
	for _, w := range sched.Windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO schedules (owner_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			updated_at = now()
	`, sched.OwnerID, sched.Timezone)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_windows WHERE owner_id = $1`, sched.OwnerID); err != nil {
		return err
	}
	for _, w := range sched.Windows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedule_windows (owner_id, day_of_week, start_time, end_time)
			VALUES ($1, $2, $3, $4)
		`, sched.OwnerID, int(w.Day), w.Start.String(), w.End.String()); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Delete removes the schedule; windows go with it via the cascading FK.
func (r *ScheduleRepository) Delete(ctx context.Context, ownerID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE owner_id = $1`, ownerID)
	return err
}
