package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buffer = 30 * time.Minute

func query(block time.Duration, busy ...Interval) SlotQuery {
	return SlotQuery{
		DayOpen:     at(9, 0),
		LatestStart: at(21, 0),
		Busy:        busy,
		Block:       block,
		Granularity: 5 * time.Minute,
		LateSlack:   15 * time.Minute,
		Max:         4,
	}
}

func TestFindSlotsSuggestsEndOfExistingScreening(t *testing.T) {
	existing := Occupied(at(14, 0), 120*time.Minute, buffer)
	got := FindSlots(query(90*time.Minute+buffer, existing))

	assert.Contains(t, got, at(16, 30))
	assert.Equal(t, []time.Time{at(9, 0), at(16, 30)}, got)
}

func TestFindSlotsNoLateProposalBeforeFirstScreening(t *testing.T) {
	// 09:00-14:00 leaves plenty of slack, but only gaps between two
	// screenings get a late proposal
	busy := []Interval{{at(14, 0), at(16, 0)}}
	got := FindSlots(query(time.Hour, busy...))
	assert.Equal(t, []time.Time{at(9, 0), at(16, 0)}, got)
}

func TestFindSlotsEmptyDay(t *testing.T) {
	got := FindSlots(query(2 * time.Hour))
	assert.Equal(t, []time.Time{at(9, 0)}, got)
}

func TestFindSlotsRoundsEarlyStartWithoutCollision(t *testing.T) {
	// previous screening frees the hall at 11:32; nearest boundary is 11:30
	// which is inside it, so the next boundary is proposed instead
	busy := []Interval{
		{at(9, 0), at(11, 32)},
		{at(20, 0), at(21, 0)},
	}
	got := FindSlots(query(time.Hour, busy...))
	require.NotEmpty(t, got)
	assert.Equal(t, at(11, 35), got[0])
}

func TestFindSlotsRoundsHalfUp(t *testing.T) {
	assert.Equal(t, at(10, 35), RoundNearest(at(10, 33), 5*time.Minute))
	assert.Equal(t, at(10, 30), RoundNearest(at(10, 32), 5*time.Minute))
	assert.Equal(t, at(10, 40), RoundNearest(at(10, 35), 10*time.Minute))
	assert.Equal(t, at(10, 30), RoundNearest(at(10, 32).Add(40*time.Second), 5*time.Minute))
}

func TestFindSlotsLateCandidateNudgedBack(t *testing.T) {
	// gap 11:00-15:13, block 60m: late start 14:13 rounds to 14:15, which
	// would run past 15:13, so it is pulled back to 14:10
	busy := []Interval{
		{at(9, 0), at(11, 0)},
		{at(15, 13), at(21, 30)},
	}
	got := FindSlots(query(time.Hour, busy...))
	assert.Equal(t, []time.Time{at(11, 0), at(14, 10)}, got)
}

func TestFindSlotsSkipsLateCandidateWithoutSlack(t *testing.T) {
	busy := []Interval{
		{at(9, 0), at(11, 0)},
		{at(12, 10), at(21, 30)},
	}
	got := FindSlots(query(time.Hour, busy...))
	assert.Equal(t, []time.Time{at(11, 0)}, got)
}

func TestFindSlotsTinyGapsIgnored(t *testing.T) {
	busy := []Interval{
		{at(9, 0), at(11, 0)},
		{at(11, 20), at(13, 0)},
		{at(13, 10), at(21, 30)},
	}
	assert.Empty(t, FindSlots(query(time.Hour, busy...)))
}

func TestFindSlotsBoundedAndSorted(t *testing.T) {
	busy := []Interval{
		{at(11, 0), at(12, 0)},
		{at(14, 0), at(15, 0)},
		{at(17, 0), at(18, 0)},
	}
	got := FindSlots(query(time.Hour, busy...))
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Before(got[i]))
	}
	// leading gap: early only; 12-14: early and late; 15-17 reaches the cap
	assert.Equal(t, []time.Time{at(9, 0), at(12, 0), at(13, 0), at(15, 0)}, got)
}

func TestFindSlotsCapKeepsChronologicalOrder(t *testing.T) {
	busy := []Interval{
		{at(10, 0), at(11, 0)},
		{at(13, 0), at(14, 0)},
		{at(16, 0), at(17, 0)},
		{at(19, 0), at(20, 0)},
	}
	q := query(time.Hour, busy...)
	assert.Equal(t, []time.Time{at(9, 0), at(11, 0), at(12, 0), at(14, 0)}, FindSlots(q))

	q.Max = 10
	assert.Equal(t, []time.Time{at(9, 0), at(11, 0), at(12, 0), at(14, 0), at(15, 0), at(17, 0), at(18, 0), at(20, 0)}, FindSlots(q))
}

func TestFindSlotsNeverCollides(t *testing.T) {
	busy := []Interval{
		Occupied(at(9, 40), 97*time.Minute, buffer),
		Occupied(at(13, 3), 101*time.Minute, buffer),
		Occupied(at(17, 50), 88*time.Minute, buffer),
	}
	for _, mins := range []int{45, 80, 95, 110, 150} {
		block := time.Duration(mins)*time.Minute + buffer
		q := query(block, busy...)
		q.Max = 10
		for _, start := range FindSlots(q) {
			candidate := Interval{Start: start, End: start.Add(block)}
			assert.Equal(t, -1, FirstOverlap(candidate, busy), "movie %dm at %s", mins, start.Format("15:04"))
			assert.False(t, start.Before(q.DayOpen))
			assert.False(t, start.After(q.LatestStart))
		}
	}
}

func TestFindSlotsUnsortedInput(t *testing.T) {
	a := Occupied(at(14, 0), 120*time.Minute, buffer)
	b := Occupied(at(10, 0), 60*time.Minute, buffer)
	assert.Equal(t, FindSlots(query(time.Hour, a, b)), FindSlots(query(time.Hour, b, a)))
}
