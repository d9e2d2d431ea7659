package model

import "time"

// Payment records a confirmed payment order.  OrderToken is unique, which
// makes replays of the same confirmation detectable.
//
// Fields:
//  ID          – primary key identifier.
//  OrderToken  – opaque token issued with the hold and echoed by the payment provider.
//  UserID      – paying customer.
//  ScreeningID – screening the order bought seats for.
//  AmountCents – sum of the ticket prices.
//  TicketCount – number of tickets sold by the order.
//  CreatedAt   – creation timestamp.
type Payment struct {
	ID          uint64    // payments.id
	OrderToken  string    // payments.order_token
	UserID      uint64    // payments.user_id
	ScreeningID uint64    // payments.screening_id
	AmountCents int64     // payments.amount_cents
	TicketCount int       // payments.ticket_count
	CreatedAt   time.Time // payments.created_at
}
