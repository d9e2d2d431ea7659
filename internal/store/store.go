// Package store declares the persistence contracts the services depend on.
// The MySQL implementation lives in package repository; tests substitute
// in-memory fakes.  Every method taking a Tx runs inside the caller's
// transaction, and a callback returning an error rolls the transaction back.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("store: duplicate key")

// Catalog reads halls and movies.
type Catalog interface {
	HallByID(ctx context.Context, id uint64) (*model.Hall, error)
	MovieByID(ctx context.Context, id uint64) (*model.Movie, error)
}

// ScheduleStore backs the scheduling service.
type ScheduleStore interface {
	Catalog
	// ActiveScreenings lists non-cancelled screenings of the hall starting
	// in [from, to), ordered by start.
	ActiveScreenings(ctx context.Context, hallID uint64, from, to time.Time) ([]model.ScheduledScreening, error)
	WithScheduleTx(ctx context.Context, fn func(tx ScheduleTx) error) error
}

// ScheduleTx is the transactional half of ScheduleStore.
type ScheduleTx interface {
	// LockHall takes the hall row lock that serializes scheduling in it.
	LockHall(ctx context.Context, hallID uint64) error
	ActiveScreenings(ctx context.Context, hallID uint64, from, to time.Time) ([]model.ScheduledScreening, error)
	// InsertScreening fills in ID and CreatedAt.  ErrDuplicate signals an
	// active screening already starting at the same time in the hall.
	InsertScreening(ctx context.Context, s *model.Screening) error
}

// ReservationStore backs the reservation, cancellation and sweeper paths.
type ReservationStore interface {
	ScreeningDetail(ctx context.Context, id uint64) (*model.ScreeningDetail, error)
	// UnavailableSeats returns seats with a SOLD ticket or a HELD ticket
	// expiring after now.
	UnavailableSeats(ctx context.Context, screeningID uint64, now time.Time) ([]model.SeatKey, error)
	PaymentByOrderToken(ctx context.Context, token string) (*model.Payment, error)
	// ExpireHolds moves at most limit HELD tickets with expiry <= now to
	// EXPIRED and reports how many moved.
	ExpireHolds(ctx context.Context, now time.Time, limit int) (int64, error)
	WithReservationTx(ctx context.Context, fn func(tx ReservationTx) error) error
}

// ReservationTx is the transactional half of ReservationStore.
type ReservationTx interface {
	// LockScreening locks and returns the screening row with its movie
	// and hall.
	LockScreening(ctx context.Context, id uint64) (*model.ScreeningDetail, error)
	// ScreeningDetail reads the screening inside the transaction without
	// locking it.
	ScreeningDetail(ctx context.Context, id uint64) (*model.ScreeningDetail, error)
	MarkScreeningCancelled(ctx context.Context, id uint64) error

	// ExpireScreeningHolds moves stale HELD tickets of the screening to
	// EXPIRED so their seats can be taken again.
	ExpireScreeningHolds(ctx context.Context, screeningID uint64, now time.Time) (int64, error)
	// OccupiedSeats returns which of seats are SOLD or HELD past now.
	OccupiedSeats(ctx context.Context, screeningID uint64, seats []model.SeatKey, now time.Time) ([]model.SeatKey, error)
	// InsertTickets fills in IDs and stores each ticket's OrderToken.
	// ErrDuplicate signals a seat already occupied by a HELD or SOLD ticket.
	InsertTickets(ctx context.Context, tickets []*model.Ticket) error
	// ReleaseHolds moves the user's unexpired HELD tickets to RELEASED.
	// screeningID 0 means every screening.
	ReleaseHolds(ctx context.Context, userID, screeningID uint64, now time.Time) (int64, error)

	PaymentByOrderToken(ctx context.Context, token string) (*model.Payment, error)
	// InsertPayment fills in ID.  ErrDuplicate signals a known order token.
	InsertPayment(ctx context.Context, p *model.Payment) error
	// UpdatePaymentTotals records the buyer and totals once the order's
	// tickets are known.
	UpdatePaymentTotals(ctx context.Context, id, userID uint64, amountCents int64, count int) error
	// HeldTickets locks the HELD, unexpired tickets for the given seats
	// that were issued under orderToken.  userID 0 matches any holder.
	HeldTickets(ctx context.Context, screeningID, userID uint64, orderToken string, seats []model.SeatKey, now time.Time) ([]model.Ticket, error)
	MarkSold(ctx context.Context, ticketIDs []uint64, priceCents int64, orderToken string, now time.Time) error

	LockTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	MarkRefunded(ctx context.Context, ticketID uint64, now time.Time) error
	// SoldTickets lists SOLD tickets of the screening.
	SoldTickets(ctx context.Context, screeningID uint64) ([]model.Ticket, error)
	// RefundScreening moves every SOLD ticket of the screening to REFUNDED
	// and every HELD one to RELEASED.
	RefundScreening(ctx context.Context, screeningID uint64, now time.Time) (refunded, released int64, err error)
}
