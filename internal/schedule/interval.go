// Package schedule holds the pure time arithmetic behind screening
// placement: occupied intervals, overlap tests and free slot search.
// Nothing here touches storage or the clock.
package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Occupied returns the interval a screening blocks in its hall: the running
// time plus the cleaning buffer that follows it.
func Occupied(start time.Time, duration, buffer time.Duration) Interval {
	return Interval{Start: start, End: start.Add(duration + buffer)}
}

// Overlaps reports whether a and b share any instant.  Touching intervals
// (one ends exactly when the other starts) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlaps is the method form of the package-level Overlaps.
func (i Interval) Overlaps(o Interval) bool { return Overlaps(i, o) }

// Len returns End - Start.
func (i Interval) Len() time.Duration { return i.End.Sub(i.Start) }

// FirstOverlap returns the index of the first interval in busy that
// overlaps candidate, or -1.
func FirstOverlap(candidate Interval, busy []Interval) int {
	for i, b := range busy {
		if Overlaps(candidate, b) {
			return i
		}
	}
	return -1
}

// SortByStart orders intervals by start time in place.
func SortByStart(busy []Interval) {
	sort.SliceStable(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
}
