package model

import "time"

// Screening is one showing of a movie in a hall.  Active (non-cancelled)
// screenings of a hall never overlap once the cleaning buffer is added to
// their running time.
//
// Fields:
//  ID          – primary key identifier.
//  HallID      – hall where the screening takes place.
//  MovieID     – movie being shown.
//  StartsAt    – start time, stored in UTC.
//  IsCancelled – cancelled screenings free their slot and no longer sell.
//  CreatedAt   – creation timestamp.
type Screening struct {
	ID          uint64    // screenings.id
	HallID      uint64    // screenings.hall_id
	MovieID     uint64    // screenings.movie_id
	StartsAt    time.Time // screenings.starts_at
	IsCancelled bool      // screenings.is_cancelled
	CreatedAt   time.Time // screenings.created_at
}

// ScheduledScreening is an active screening joined with the movie data the
// scheduler needs to compute its occupied interval.
type ScheduledScreening struct {
	Screening
	MovieTitle  string
	DurationMin uint32
}

// Duration returns the movie running time of the screening.
func (s ScheduledScreening) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}

// ScreeningDetail is a screening joined with its movie and hall.  It is
// what the reservation paths lock and inspect.
type ScreeningDetail struct {
	Screening
	MovieTitle  string
	DurationMin uint32
	PriceCents  int64
	HallName    string
	Rows        uint32
	SeatsPerRow uint32
}

// Hall returns the hall geometry of the screening.
func (d ScreeningDetail) Hall() Hall {
	return Hall{ID: d.HallID, Name: d.HallName, Rows: d.Rows, SeatsPerRow: d.SeatsPerRow}
}
