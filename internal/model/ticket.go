package model

import "time"

// TicketStatus is the lifecycle state of a ticket row.
type TicketStatus string

const (
	TicketHeld     TicketStatus = "HELD"
	TicketSold     TicketStatus = "SOLD"
	TicketReleased TicketStatus = "RELEASED"
	TicketExpired  TicketStatus = "EXPIRED"
	TicketRefunded TicketStatus = "REFUNDED"
)

// Occupying reports whether a ticket in this state may block its seat.
// A HELD ticket only blocks while its expiry lies in the future.
func (s TicketStatus) Occupying() bool { return s == TicketHeld || s == TicketSold }

// Ticket is a claim on one seat of one screening.  A seat is unavailable
// when it has a SOLD ticket or a HELD ticket whose ExpiresAt is after now.
//
// Fields:
//  ID          – primary key identifier.
//  ScreeningID – screening the seat belongs to.
//  UserID      – customer who holds or bought the seat.
//  Seat        – row and seat number.
//  Status      – lifecycle state.
//  AccessToken – unique random token printed on the ticket.
//  ExpiresAt   – hold expiry; meaningful while HELD.
//  PriceCents  – final price, stamped when SOLD.
//  OrderToken  – order the hold was issued under; the paying order once SOLD.
//  Contact     – where cancellation notices are sent (may be empty).
//  CreatedAt   – creation timestamp.
//  SoldAt      – when the hold was converted (nullable).
//  RefundedAt  – when the sale was refunded (nullable).
type Ticket struct {
	ID          uint64       // tickets.id
	ScreeningID uint64       // tickets.screening_id
	UserID      uint64       // tickets.user_id
	Seat        SeatKey      // tickets.row_num, tickets.seat_num
	Status      TicketStatus // tickets.status
	AccessToken string       // tickets.access_token
	ExpiresAt   *time.Time   // tickets.expires_at (nullable)
	PriceCents  int64        // tickets.price_cents
	OrderToken  *string      // tickets.order_token (nullable)
	Contact     string       // tickets.contact
	CreatedAt   time.Time    // tickets.created_at
	SoldAt      *time.Time   // tickets.sold_at (nullable)
	RefundedAt  *time.Time   // tickets.refunded_at (nullable)
}

// BlocksSeat reports whether the ticket makes its seat unavailable at now.
func (t Ticket) BlocksSeat(now time.Time) bool {
	switch t.Status {
	case TicketSold:
		return true
	case TicketHeld:
		return t.ExpiresAt != nil && t.ExpiresAt.After(now)
	}
	return false
}
