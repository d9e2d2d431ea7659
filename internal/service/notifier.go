package service

import (
	"context"

	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// SaleConfirmed describes a completed purchase for downstream consumers.
type SaleConfirmed struct {
	OrderToken  string   `json:"order_token"`
	UserID      uint64   `json:"user_id"`
	ScreeningID uint64   `json:"screening_id"`
	MovieTitle  string   `json:"movie_title"`
	HallName    string   `json:"hall_name"`
	Seats       []string `json:"seats"`
	AmountCents int64    `json:"amount_cents"`
	ConfirmedAt string   `json:"confirmed_at"`
}

// Notifier delivers events to customers or downstream systems.  Calls
// happen after the owning transaction committed; failures are logged by
// the caller and never undo the committed change.
type Notifier interface {
	NotifyCancellation(ctx context.Context, n model.CancellationNotice) error
	NotifySaleConfirmed(ctx context.Context, e SaleConfirmed) error
}

// LogNotifier only logs.  It is used when no broker is configured.
type LogNotifier struct {
	Log *logger.Logger
}

func (n LogNotifier) NotifyCancellation(_ context.Context, c model.CancellationNotice) error {
	n.Log.Info("cancellation notice",
		"ticket_id", c.TicketID, "user_id", c.UserID, "movie", c.MovieTitle, "hall", c.HallName,
		"starts_at", c.StartsAt, "refund_cents", c.RefundCents, "contact", c.Contact)
	return nil
}

func (n LogNotifier) NotifySaleConfirmed(_ context.Context, e SaleConfirmed) error {
	n.Log.Info("sale confirmed notice", "order_token", e.OrderToken, "user_id", e.UserID, "seats", e.Seats)
	return nil
}
