package model

import "time"

// CancellationNotice tells a customer that a screening they bought a
// ticket for was cancelled and the ticket refunded.
type CancellationNotice struct {
	TicketID    uint64    `json:"ticket_id"`
	UserID      uint64    `json:"user_id"`
	ScreeningID uint64    `json:"screening_id"`
	MovieTitle  string    `json:"movie_title"`
	HallName    string    `json:"hall_name"`
	StartsAt    time.Time `json:"starts_at"`
	RefundCents int64     `json:"refund_cents"`
	Contact     string    `json:"recipient_contact"`
}
