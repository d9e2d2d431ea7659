package model

import "time"

// Movie is a read-only catalog entry from the scheduler's point of view.
// DurationMin is the running time without the cleaning buffer.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – display title.
//  DurationMin – running time in minutes (> 0).
//  PriceCents  – ticket price stamped onto tickets when they are sold.
//  IsActive    – inactive movies cannot be scheduled.
//  CreatedAt   – creation timestamp.
type Movie struct {
	ID          uint64    // movies.id
	Title       string    // movies.title
	DurationMin uint32    // movies.duration_min
	PriceCents  int64     // movies.price_cents
	IsActive    bool      // movies.is_active
	CreatedAt   time.Time // movies.created_at
}

// Duration returns the running time as a time.Duration.
func (m Movie) Duration() time.Duration { return time.Duration(m.DurationMin) * time.Minute }
