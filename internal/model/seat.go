package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SeatKey identifies a seat inside a hall by row and seat number, both
// starting at 1.  Its text form is "row-seat", e.g. "3-12".
type SeatKey struct {
	Row  uint32 `json:"row"`
	Seat uint32 `json:"seat"`
}

// String renders the key as "row-seat".
func (k SeatKey) String() string { return fmt.Sprintf("%d-%d", k.Row, k.Seat) }

// ParseSeatKey parses the "row-seat" form.
func ParseSeatKey(s string) (SeatKey, error) {
	r, c, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return SeatKey{}, fmt.Errorf("seat %q: expected row-seat", s)
	}
	row, err := strconv.ParseUint(r, 10, 32)
	if err != nil || row == 0 {
		return SeatKey{}, fmt.Errorf("seat %q: invalid row", s)
	}
	seat, err := strconv.ParseUint(c, 10, 32)
	if err != nil || seat == 0 {
		return SeatKey{}, fmt.Errorf("seat %q: invalid seat number", s)
	}
	return SeatKey{Row: uint32(row), Seat: uint32(seat)}, nil
}

// Less orders seats row-major.
func (k SeatKey) Less(o SeatKey) bool {
	if k.Row != o.Row {
		return k.Row < o.Row
	}
	return k.Seat < o.Seat
}
