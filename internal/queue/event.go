// Package queue carries notices over RabbitMQ: a publisher that implements
// service.Notifier and a consumer that appends received notices to log
// files.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/service"
)

// ScreeningCancelledEvent is published once per refunded ticket when a
// screening is cancelled.  It carries everything needed to notify the
// customer without reading the database.
type ScreeningCancelledEvent struct {
	TicketID         uint64 `json:"ticket_id"`
	UserID           uint64 `json:"user_id"`
	ScreeningID      uint64 `json:"screening_id"`
	MovieTitle       string `json:"movie_title"`
	HallName         string `json:"hall_name"`
	StartsAt         string `json:"starts_at"`
	RefundCents      int64  `json:"refund_cents"`
	RecipientContact string `json:"recipient_contact"`
	CancelledAt      string `json:"cancelled_at"`
}

// NewScreeningCancelledEvent builds the wire payload for a notice.
func NewScreeningCancelledEvent(n model.CancellationNotice, now time.Time) ScreeningCancelledEvent {
	return ScreeningCancelledEvent{
		TicketID:         n.TicketID,
		UserID:           n.UserID,
		ScreeningID:      n.ScreeningID,
		MovieTitle:       n.MovieTitle,
		HallName:         n.HallName,
		StartsAt:         n.StartsAt.UTC().Format(time.RFC3339),
		RefundCents:      n.RefundCents,
		RecipientContact: n.Contact,
		CancelledAt:      now.UTC().Format(time.RFC3339),
	}
}

// SaleConfirmedEvent is published when held seats are paid for.
type SaleConfirmedEvent = service.SaleConfirmed
