package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slotcal/slotcal/internal/model"
	"github.com/slotcal/slotcal/internal/timeutil"
)

type fakeSchedules struct {
	sched model.Schedule
	err   error
}

func (f *fakeSchedules) GetSchedule(_ context.Context, _ string) (model.Schedule, error) {
	return f.sched, f.err
}

type fakeBusy struct {
	intervals []Interval
	err       error
}

func (f *fakeBusy) BusyIntervals(_ context.Context, _ string, _, _ time.Time) ([]Interval, error) {
	return f.intervals, f.err
}

func clock(h, m int) timeutil.Clock {
	return timeutil.Clock{Hour: h, Minute: m}
}

// nySchedule is a Monday 09:00-17:00 pattern in America/New_York.
func nySchedule(t *testing.T) model.Schedule {
	t.Helper()
	return model.Schedule{
		OwnerID:  "owner-1",
		Timezone: "America/New_York",
		Windows: []model.AvailabilityWindow{
			{Day: time.Monday, Start: clock(9, 0), End: clock(17, 0)},
		},
	}
}

// 2026-01-26 is a Monday; New York is on EST (UTC-5) in January.
var (
	mondayUTC = time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	tuesday   = mondayUTC.AddDate(0, 0, 1)
	longAgo   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func resolve(t *testing.T, sched model.Schedule, busy []Interval, req Request) []Slot {
	t.Helper()
	r := &Resolver{
		Schedules: &fakeSchedules{sched: sched},
		Busy:      &fakeBusy{intervals: busy},
	}
	slots, err := r.ResolveSlots(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveSlots: %v", err)
	}
	return slots
}

func TestResolveMondayNineToFive(t *testing.T) {
	slots := resolve(t, nySchedule(t), nil, Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      longAgo,
	})
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	// 09:00 EST == 14:00 UTC.
	if !slots[0].Start.Equal(mondayUTC.Add(14 * time.Hour)) {
		t.Fatalf("first slot should be 14:00 UTC, got %s", slots[0].Start.Format(time.RFC3339))
	}
	// Last slot starts 16:30 EST == 21:30 UTC and ends at window close.
	last := slots[len(slots)-1]
	if !last.Start.Equal(mondayUTC.Add(21*time.Hour + 30*time.Minute)) {
		t.Fatalf("last slot should start 21:30 UTC, got %s", last.Start.Format(time.RFC3339))
	}
	if !last.End.Equal(mondayUTC.Add(22 * time.Hour)) {
		t.Fatalf("last slot should end 22:00 UTC, got %s", last.End.Format(time.RFC3339))
	}
	for i := 1; i < len(slots); i++ {
		if got := slots[i].Start.Sub(slots[i-1].Start); got != 30*time.Minute {
			t.Fatalf("slot %d not on 30m grid: %s", i, got)
		}
	}
}

func TestResolveSubtractsBusy(t *testing.T) {
	// Busy 10:00-11:00 owner-local (15:00-16:00 UTC) knocks out two slots.
	busy := []Interval{{
		Start: mondayUTC.Add(15 * time.Hour),
		End:   mondayUTC.Add(16 * time.Hour),
	}}
	slots := resolve(t, nySchedule(t), busy, Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      longAgo,
	})
	if len(slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Before(busy[0].End) && busy[0].Start.Before(s.End) {
			t.Fatalf("slot %s overlaps busy interval", s.Start.Format(time.RFC3339))
		}
	}
}

func TestResolveOversizedDurationYieldsEmpty(t *testing.T) {
	slots := resolve(t, nySchedule(t), nil, Request{
		OwnerID:  "owner-1",
		Duration: 600 * time.Minute, // longer than the 8h window
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      longAgo,
	})
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestResolveNoSchedule(t *testing.T) {
	r := &Resolver{
		Schedules: &fakeSchedules{err: ErrNoSchedule},
		Busy:      &fakeBusy{},
	}
	_, err := r.ResolveSlots(context.Background(), Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      longAgo,
	})
	if !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("expected ErrNoSchedule, got %v", err)
	}
}

func TestResolveBusyFetchErrorPropagates(t *testing.T) {
	r := &Resolver{
		Schedules: &fakeSchedules{sched: nySchedule(t)},
		Busy:      &fakeBusy{err: errors.New("db down")},
	}
	_, err := r.ResolveSlots(context.Background(), Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      longAgo,
	})
	if err == nil {
		t.Fatal("expected error from busy provider")
	}
}

func TestResolveNowCutoffIsStrict(t *testing.T) {
	// Now exactly at a slot boundary: that slot is excluded, the next kept.
	now := mondayUTC.Add(15 * time.Hour) // 10:00 EST, a slot start
	slots := resolve(t, nySchedule(t), nil, Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      now,
	})
	if len(slots) == 0 {
		t.Fatal("expected remaining slots")
	}
	if !slots[0].Start.After(now) {
		t.Fatalf("first slot %s must be strictly after now %s",
			slots[0].Start.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if !slots[0].Start.Equal(mondayUTC.Add(15*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected first slot 15:30 UTC, got %s", slots[0].Start.Format(time.RFC3339))
	}
}

func TestResolveUnionsOverlappingWindows(t *testing.T) {
	sched := nySchedule(t)
	sched.Windows = []model.AvailabilityWindow{
		{Day: time.Monday, Start: clock(9, 0), End: clock(12, 0)},
		{Day: time.Monday, Start: clock(10, 0), End: clock(13, 0)},
	}
	slots := resolve(t, sched, nil, Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      longAgo,
	})
	// Union 09:00-13:00 owner-local: 8 half-hour slots, no duplicates.
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatalf("slots not strictly increasing at %d", i)
		}
	}
}

func TestResolveViewerRenderingKeepsInstants(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	utcSlots := resolve(t, nySchedule(t), nil, Request{
		OwnerID: "owner-1", Duration: 30 * time.Minute,
		From: mondayUTC, To: tuesday, Viewer: time.UTC, Now: longAgo,
	})
	tokyoSlots := resolve(t, nySchedule(t), nil, Request{
		OwnerID: "owner-1", Duration: 30 * time.Minute,
		From: mondayUTC, To: tuesday, Viewer: tokyo, Now: longAgo,
	})
	if len(utcSlots) != len(tokyoSlots) {
		t.Fatalf("slot counts differ: %d vs %d", len(utcSlots), len(tokyoSlots))
	}
	for i := range utcSlots {
		if !utcSlots[i].Start.Equal(tokyoSlots[i].Start) {
			t.Fatalf("slot %d instant moved across zones", i)
		}
		if tokyoSlots[i].Start.Location() != tokyo {
			t.Fatalf("slot %d not rendered in viewer zone", i)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	req := Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     mondayUTC,
		To:       tuesday,
		Viewer:   time.UTC,
		Now:      longAgo,
	}
	first := resolve(t, nySchedule(t), nil, req)
	second := resolve(t, nySchedule(t), nil, req)
	if len(first) != len(second) {
		t.Fatalf("resolution not idempotent: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs between identical resolutions", i)
		}
	}
}

func TestResolveDSTSpringForward(t *testing.T) {
	// 2026-03-09 is the Monday after the US spring-forward; the 09:00 window
	// opens at 13:00 UTC instead of 14:00.
	sched := nySchedule(t)
	from := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	slots := resolve(t, sched, nil, Request{
		OwnerID:  "owner-1",
		Duration: 30 * time.Minute,
		From:     from,
		To:       from.AddDate(0, 0, 1),
		Viewer:   time.UTC,
		Now:      longAgo,
	})
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(from.Add(13 * time.Hour)) {
		t.Fatalf("EDT window should open 13:00 UTC, got %s", slots[0].Start.Format(time.RFC3339))
	}
}

func TestWindowsContain(t *testing.T) {
	sched := nySchedule(t)
	inside := Interval{
		Start: mondayUTC.Add(15 * time.Hour),
		End:   mondayUTC.Add(15*time.Hour + 30*time.Minute),
	}
	ok, err := WindowsContain(sched, inside)
	if err != nil {
		t.Fatalf("WindowsContain: %v", err)
	}
	if !ok {
		t.Fatal("10:00-10:30 EST Monday should be contained")
	}

	outside := Interval{
		Start: mondayUTC.Add(23 * time.Hour), // 18:00 EST, after close
		End:   mondayUTC.Add(23*time.Hour + 30*time.Minute),
	}
	ok, err = WindowsContain(sched, outside)
	if err != nil {
		t.Fatalf("WindowsContain: %v", err)
	}
	if ok {
		t.Fatal("slot after window close must not be contained")
	}

	// Straddling the window close is rejected too.
	straddle := Interval{
		Start: mondayUTC.Add(21*time.Hour + 45*time.Minute),
		End:   mondayUTC.Add(22*time.Hour + 15*time.Minute),
	}
	ok, err = WindowsContain(sched, straddle)
	if err != nil {
		t.Fatalf("WindowsContain: %v", err)
	}
	if ok {
		t.Fatal("slot straddling window close must not be contained")
	}
}
