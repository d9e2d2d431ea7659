package model

import "time"

// Hall represents a screening hall.  Seating is a plain grid: rows are
// numbered 1..Rows and seats within a row 1..SeatsPerRow.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – unique hall name.
//  Rows        – number of seating rows.
//  SeatsPerRow – number of seats in every row.
//  CreatedAt   – creation timestamp.
type Hall struct {
	ID          uint64    // halls.id
	Name        string    // halls.name
	Rows        uint32    // halls.seat_rows
	SeatsPerRow uint32    // halls.seats_per_row
	CreatedAt   time.Time // halls.created_at
}

// Capacity returns the number of seats in the hall.
func (h Hall) Capacity() int { return int(h.Rows) * int(h.SeatsPerRow) }

// Contains reports whether the seat lies inside the hall's grid.
func (h Hall) Contains(s SeatKey) bool {
	return s.Row >= 1 && s.Row <= h.Rows && s.Seat >= 1 && s.Seat <= h.SeatsPerRow
}
