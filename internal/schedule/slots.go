package schedule

import (
	"sort"
	"time"
)

// SlotQuery describes one free-slot search over a hall's day.
type SlotQuery struct {
	// DayOpen is the earliest permitted start of the day.
	DayOpen time.Time
	// LatestStart is the latest permitted start of the day.
	LatestStart time.Time
	// Busy holds the occupied intervals of the day's active screenings.
	Busy []Interval
	// Block is the requested movie's running time plus cleaning buffer.
	Block time.Duration
	// Granularity is the rounding step for proposed starts (5m).
	Granularity time.Duration
	// LateSlack is the minimum room a gap must leave before a second,
	// late proposal is made for it (15m).
	LateSlack time.Duration
	// Max bounds the number of proposals (4).
	Max int
}

// FindSlots proposes start times at which a screening of q.Block length
// fits between the busy intervals.  Gaps are visited chronologically:
// before the first screening, between consecutive screenings, and after the
// last one up to LatestStart.  Every gap yields an early proposal near its
// start; interior gaps with enough slack also yield a late proposal that
// finishes right at the gap's end.  The result is sorted, free of
// duplicates and at most q.Max long.
func FindSlots(q SlotQuery) []time.Time {
	if q.Max <= 0 || q.Block <= 0 {
		return nil
	}
	busy := make([]Interval, len(q.Busy))
	copy(busy, q.Busy)
	SortByStart(busy)

	var out []time.Time
	add := func(t time.Time) bool {
		out = append(out, t)
		return len(out) >= q.Max
	}

	windowStart := q.DayOpen
	for i := 0; i <= len(busy); i++ {
		trailing := i == len(busy)
		var windowEnd time.Time
		if trailing {
			windowEnd = q.LatestStart
		} else {
			windowEnd = busy[i].Start
		}

		if fitsGap(windowStart, windowEnd, q.Block, trailing) {
			if early, ok := earlyCandidate(q, windowStart, windowEnd, trailing); ok {
				if add(early) {
					break
				}
			}
			// the leading gap is bounded by opening time, not a screening
			if !trailing && i > 0 {
				if late, ok := lateCandidate(q, windowStart, windowEnd); ok {
					if add(late) {
						break
					}
				}
			}
		}

		if !trailing && busy[i].End.After(windowStart) {
			windowStart = busy[i].End
		}
	}
	return dedupeSorted(out)
}

// fitsGap: interior gaps must hold the whole block; the trailing gap only
// needs a start at or before the latest start.
func fitsGap(start, end time.Time, block time.Duration, trailing bool) bool {
	if trailing {
		return !start.After(end)
	}
	return end.Sub(start) >= block
}

func earlyCandidate(q SlotQuery, windowStart, windowEnd time.Time, trailing bool) (time.Time, bool) {
	t := RoundNearest(windowStart, q.Granularity)
	if t.Before(windowStart) {
		// rounding down would eat into the previous screening's buffer
		t = t.Add(q.Granularity)
	}
	if trailing {
		return t, !t.After(q.LatestStart)
	}
	return t, !t.Add(q.Block).After(windowEnd)
}

func lateCandidate(q SlotQuery, windowStart, windowEnd time.Time) (time.Time, bool) {
	late := windowEnd.Add(-q.Block)
	if late.Sub(windowStart) <= q.LateSlack {
		return time.Time{}, false
	}
	t := RoundNearest(late, q.Granularity)
	if t.Add(q.Block).After(windowEnd) {
		t = t.Add(-q.Granularity)
	}
	if t.Before(windowStart) {
		return time.Time{}, false
	}
	return t, true
}

// RoundNearest rounds t to the nearest multiple of g counted from local
// midnight of t's location; halves round up.  Sub-minute precision is
// dropped first so 16:32:40 is treated as 16:32.
func RoundNearest(t time.Time, g time.Duration) time.Time {
	if g <= 0 {
		return t
	}
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	mins := int64(t.Sub(midnight) / time.Minute)
	step := int64(g / time.Minute)
	if step <= 0 {
		return t.Truncate(time.Minute)
	}
	rounded := (mins + step/2) / step * step
	return midnight.Add(time.Duration(rounded) * time.Minute)
}

func dedupeSorted(ts []time.Time) []time.Time {
	if len(ts) == 0 {
		return ts
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	out := ts[:1]
	for _, t := range ts[1:] {
		if !t.Equal(out[len(out)-1]) {
			out = append(out, t)
		}
	}
	return out
}
