// Package availability computes the offerable time slots for an owner: it
// projects the weekly recurring window pattern onto concrete dates in the
// owner's timezone, subtracts committed busy intervals, and renders the
// surviving fixed-length slots in the viewer's timezone.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/slotcal/slotcal/internal/model"
	"github.com/slotcal/slotcal/internal/timeutil"
)

// ErrNoSchedule means the owner never configured availability. Callers must
// render this as its own state; it is not the same as an empty slot list.
var ErrNoSchedule = errors.New("no availability schedule configured")

// ScheduleProvider supplies an owner's weekly pattern and timezone.
type ScheduleProvider interface {
	GetSchedule(ctx context.Context, ownerID string) (model.Schedule, error)
}

// BusyProvider supplies the owner's already-committed intervals overlapping
// [from, to). Intervals need not be merged or sorted.
type BusyProvider interface {
	BusyIntervals(ctx context.Context, ownerID string, from, to time.Time) ([]Interval, error)
}

// Request carries every time-sensitive parameter explicitly; the resolver
// holds no ambient clock or zone.
type Request struct {
	OwnerID  string
	Duration time.Duration
	// From and To bound the viewer's requested date range as absolute
	// instants (half-open). The caller derives them from viewer-local dates.
	From   time.Time
	To     time.Time
	Viewer *time.Location
	Now    time.Time
}

// Slot is one offerable interval, boundaries rendered in the viewer's zone.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Resolver is a pure computation over its two providers; it mutates nothing
// and is safe for concurrent use across owners and viewers.
type Resolver struct {
	Schedules ScheduleProvider
	Busy      BusyProvider
}

// busyFetchPad widens the busy query around the viewer range so the fetch can
// start before the owner's timezone is known. It exceeds the largest possible
// UTC offset spread plus the extra day of candidate dates on each side.
const busyFetchPad = 40 * time.Hour

var tracer = otel.Tracer("slotcal/availability")

// ResolveSlots implements the resolution pipeline: expand candidate owner
// dates, project and union windows, subtract busy time, slice slots, and
// filter to the requested range and the future.
func (r *Resolver) ResolveSlots(ctx context.Context, req Request) ([]Slot, error) {
	ctx, span := tracer.Start(ctx, "availability.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.Int64("duration_minutes", int64(req.Duration/time.Minute)),
	)

	if req.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	if !req.To.After(req.From) {
		return nil, fmt.Errorf("empty date range")
	}
	if req.Viewer == nil {
		req.Viewer = time.UTC
	}

	// The schedule and busy-interval reads are independent I/O; issue them
	// concurrently, both bounded by ctx.
	type busyResult struct {
		intervals []Interval
		err       error
	}
	busyCh := make(chan busyResult, 1)
	go func() {
		ivs, err := r.Busy.BusyIntervals(ctx, req.OwnerID, req.From.Add(-busyFetchPad), req.To.Add(busyFetchPad))
		busyCh <- busyResult{intervals: ivs, err: err}
	}()

	sched, err := r.Schedules.GetSchedule(ctx, req.OwnerID)
	if err != nil {
		<-busyCh
		return nil, err
	}
	ownerLoc, err := sched.Location()
	if err != nil {
		<-busyCh
		return nil, fmt.Errorf("schedule timezone %q: %w", sched.Timezone, err)
	}

	busy := <-busyCh
	if busy.err != nil {
		return nil, fmt.Errorf("fetch busy intervals: %w", busy.err)
	}

	free := SubtractAll(ProjectWindows(sched, ownerLoc, req.From, req.To), busy.intervals)

	var slots []Slot
	for _, f := range free {
		for _, s := range expand(f, req.Duration) {
			if !s.Start.After(req.Now) {
				continue
			}
			if s.Start.Before(req.From) || s.End.After(req.To) {
				continue
			}
			slots = append(slots, Slot{Start: s.Start.In(req.Viewer), End: s.End.In(req.Viewer)})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	slots = dedupe(slots)
	span.SetAttributes(attribute.Int("slot_count", len(slots)))
	return slots, nil
}

// ProjectWindows expands the weekly pattern onto every owner-local calendar
// date that could overlap [from, to). A viewer-local day can straddle two
// owner-local days, so the candidate dates extend one day past the range's
// floor on both sides. Projections are unioned per owner-local date, which
// collapses overlapping windows instead of double-counting them.
func ProjectWindows(sched model.Schedule, ownerLoc *time.Location, from, to time.Time) []Interval {
	byDay := make(map[time.Weekday][]model.AvailabilityWindow)
	for _, w := range sched.Windows {
		byDay[w.Day] = append(byDay[w.Day], w)
	}

	first := timeutil.StartOfDay(from, ownerLoc).AddDate(0, 0, -1)
	last := timeutil.StartOfDay(to, ownerLoc).AddDate(0, 0, 1)

	var projected []Interval
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		windows := byDay[day.Weekday()]
		if len(windows) == 0 {
			continue
		}
		ivs := make([]Interval, 0, len(windows))
		for _, w := range windows {
			// time.Date resolves the offset per local time, so a DST
			// transition inside the window moves each edge independently.
			ivs = append(ivs, Interval{
				Start: w.Start.On(day.Year(), day.Month(), day.Day(), ownerLoc),
				End:   w.End.On(day.Year(), day.Month(), day.Day(), ownerLoc),
			})
		}
		projected = append(projected, Union(ivs)...)
	}
	return projected
}

// WindowsContain reports whether slot lies entirely inside one projected
// occurrence of the schedule's windows. The booking commit path uses this to
// reject slots the engine would never have offered.
func WindowsContain(sched model.Schedule, slot Interval) (bool, error) {
	if !slot.IsValid() {
		return false, nil
	}
	loc, err := sched.Location()
	if err != nil {
		return false, fmt.Errorf("schedule timezone %q: %w", sched.Timezone, err)
	}
	for _, w := range ProjectWindows(sched, loc, slot.Start, slot.End) {
		if w.Contains(slot) {
			return true, nil
		}
	}
	return false, nil
}

func dedupe(slots []Slot) []Slot {
	if len(slots) < 2 {
		return slots
	}
	out := slots[:1]
	for _, s := range slots[1:] {
		last := out[len(out)-1]
		if s.Start.Equal(last.Start) && s.End.Equal(last.End) {
			continue
		}
		out = append(out, s)
	}
	return out
}
