package service

import (
	"context"

	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

// CancellationService cancels screenings and refunds their sales.
type CancellationService struct {
	store    store.ReservationStore
	clock    Clock
	notifier Notifier
	log      *logger.Logger
}

// NewCancellationService constructs a CancellationService.
func NewCancellationService(st store.ReservationStore, clock Clock, n Notifier, log *logger.Logger) *CancellationService {
	return &CancellationService{store: st, clock: clock, notifier: n, log: log}
}

// CancellationResult summarizes a screening cancellation.
type CancellationResult struct {
	ScreeningID      uint64
	Refunded         int64
	Released         int64
	AlreadyCancelled bool
	Notices          []model.CancellationNotice
}

// CancelScreening marks a screening cancelled, refunds its sold tickets and
// releases its holds in one transaction, then sends one notice per refunded
// ticket.  A started screening cannot be cancelled; cancelling twice is a
// no-op.
func (s *CancellationService) CancelScreening(ctx context.Context, screeningID uint64) (CancellationResult, error) {
	if screeningID == 0 {
		return CancellationResult{}, invalid("screening_id", "is required")
	}
	now := s.clock.Now()
	res := CancellationResult{ScreeningID: screeningID}
	err := s.store.WithReservationTx(ctx, func(tx store.ReservationTx) error {
		sc, err := tx.LockScreening(ctx, screeningID)
		if err != nil {
			return notFound(err, ErrScreeningNotFound)
		}
		if sc.IsCancelled {
			res.AlreadyCancelled = true
			return nil
		}
		if !sc.StartsAt.After(now) {
			return violation(RuleScreeningStarted, "screening %d has already started", sc.ID)
		}
		sold, err := tx.SoldTickets(ctx, sc.ID)
		if err != nil {
			return err
		}
		if err := tx.MarkScreeningCancelled(ctx, sc.ID); err != nil {
			return err
		}
		if res.Refunded, res.Released, err = tx.RefundScreening(ctx, sc.ID, now); err != nil {
			return err
		}
		res.Notices = make([]model.CancellationNotice, 0, len(sold))
		for _, t := range sold {
			res.Notices = append(res.Notices, model.CancellationNotice{
				TicketID:    t.ID,
				UserID:      t.UserID,
				ScreeningID: sc.ID,
				MovieTitle:  sc.MovieTitle,
				HallName:    sc.HallName,
				StartsAt:    sc.StartsAt,
				RefundCents: t.PriceCents,
				Contact:     t.Contact,
			})
		}
		return nil
	})
	if err != nil {
		return CancellationResult{}, storeErr("cancel screening", err)
	}
	if res.AlreadyCancelled {
		return res, nil
	}
	s.log.Info("screening cancelled", "screening_id", screeningID, "refunded", res.Refunded, "released", res.Released)
	for _, n := range res.Notices {
		if err := s.notifier.NotifyCancellation(ctx, n); err != nil {
			s.log.WithError(err).Warn("cancellation notice not delivered", "ticket_id", n.TicketID, "user_id", n.UserID)
		}
	}
	return res, nil
}
