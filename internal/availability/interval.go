package availability

import (
	"sort"
	"time"
)

// Interval is an absolute, half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) IsValid() bool {
	return iv.End.After(iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps is the half-open overlap test: touching endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies fully inside iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// In re-renders both boundaries in loc. The absolute instants are unchanged;
// only their local representation moves.
func (iv Interval) In(loc *time.Location) Interval {
	return Interval{Start: iv.Start.In(loc), End: iv.End.In(loc)}
}

// Union merges a set of intervals into the minimal disjoint set covering the
// same instants. Overlapping and exactly adjacent intervals coalesce, so
// overlapping availability windows never count as extra capacity.
func Union(ivs []Interval) []Interval {
	valid := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.IsValid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes every busy interval from free, returning the remaining
// sub-intervals in order. Busy input may overlap or abut; an interval that
// merely touches free's boundary removes nothing (half-open semantics).
func Subtract(free Interval, busy []Interval) []Interval {
	if !free.IsValid() {
		return nil
	}
	remaining := []Interval{free}
	for _, b := range Union(busy) {
		var next []Interval
		for _, r := range remaining {
			if !r.Overlaps(b) {
				next = append(next, r)
				continue
			}
			if b.Start.After(r.Start) {
				next = append(next, Interval{Start: r.Start, End: b.Start})
			}
			if b.End.Before(r.End) {
				next = append(next, Interval{Start: b.End, End: r.End})
			}
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}

// SubtractAll applies Subtract to each free interval, preserving order.
func SubtractAll(free []Interval, busy []Interval) []Interval {
	var out []Interval
	for _, f := range free {
		out = append(out, Subtract(f, busy)...)
	}
	return out
}

// expand cuts an interval into consecutive duration-length slots anchored at
// the interval's own start. A trailing remainder shorter than duration is
// dropped; an interval shorter than duration yields nothing.
func expand(iv Interval, duration time.Duration) []Interval {
	if duration <= 0 || !iv.IsValid() {
		return nil
	}
	var slots []Interval
	for t := iv.Start; !t.Add(duration).After(iv.End); t = t.Add(duration) {
		slots = append(slots, Interval{Start: t, End: t.Add(duration)})
	}
	return slots
}
