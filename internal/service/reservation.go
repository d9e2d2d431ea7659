package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-scheduler/internal/config"
	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

// ReservationService grants seat holds, turns them into sales on payment
// and refunds sales.
type ReservationService struct {
	store    store.ReservationStore
	cfg      config.ReservationConfig
	clock    Clock
	notifier Notifier
	log      *logger.Logger

	newOrderToken func() string
}

// NewReservationService constructs a ReservationService.
func NewReservationService(st store.ReservationStore, cfg config.ReservationConfig, clock Clock, n Notifier, log *logger.Logger) *ReservationService {
	return &ReservationService{
		store:         st,
		cfg:           cfg,
		clock:         clock,
		notifier:      n,
		log:           log,
		newOrderToken: uuid.NewString,
	}
}

// ReserveInput asks for an exclusive hold on seats of one screening.
type ReserveInput struct {
	ScreeningID uint64
	UserID      uint64
	Seats       []model.SeatKey
	// HoldDuration overrides the configured hold TTL when positive.
	HoldDuration time.Duration
	// Contact is stored on the tickets for cancellation notices.
	Contact string
}

// Hold is a granted reservation.  OrderToken is stored on the held tickets;
// the client passes it to the payment provider, which echoes it on
// confirmation, and only that token can buy these seats.
type Hold struct {
	ScreeningID uint64
	Tickets     []model.Ticket
	ExpiresAt   time.Time
	OrderToken  string
}

// ReserveOutcome holds exactly one of Hold or Conflict.
type ReserveOutcome struct {
	Hold     *Hold
	Conflict *SeatConflict
}

var errSeatRace = errors.New("seat taken concurrently")

func normalizeSeats(field string, seats []model.SeatKey, max int) ([]model.SeatKey, error) {
	if len(seats) == 0 {
		return nil, invalid(field, "at least one seat is required")
	}
	if max > 0 && len(seats) > max {
		return nil, invalid(field, "at most %d seats per request", max)
	}
	seen := make(map[model.SeatKey]struct{}, len(seats))
	out := make([]model.SeatKey, 0, len(seats))
	for _, k := range seats {
		if k.Row == 0 || k.Seat == 0 {
			return nil, invalid(field, "seat %s: rows and seats start at 1", k)
		}
		if _, dup := seen[k]; dup {
			return nil, invalid(field, "seat %s requested twice", k)
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// Reserve holds every requested seat or none.  Unavailable seats come
// back as a SeatConflict with a nil error.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (ReserveOutcome, error) {
	if in.ScreeningID == 0 {
		return ReserveOutcome{}, invalid("screening_id", "is required")
	}
	if in.UserID == 0 {
		return ReserveOutcome{}, invalid("user_id", "is required")
	}
	if in.HoldDuration < 0 {
		return ReserveOutcome{}, invalid("hold_duration", "must not be negative")
	}
	seats, err := normalizeSeats("seats", in.Seats, s.cfg.MaxSeats)
	if err != nil {
		return ReserveOutcome{}, err
	}
	ttl := s.cfg.HoldTTL
	if in.HoldDuration > 0 {
		ttl = in.HoldDuration
	}

	now := s.clock.Now()
	expires := now.Add(ttl)
	token := s.newOrderToken()
	var out ReserveOutcome
	err = s.store.WithReservationTx(ctx, func(tx store.ReservationTx) error {
		sc, err := tx.LockScreening(ctx, in.ScreeningID)
		if err != nil {
			return notFound(err, ErrScreeningNotFound)
		}
		if sc.IsCancelled {
			return violation(RuleScreeningCanceled, "screening %d was cancelled", sc.ID)
		}
		if !sc.StartsAt.After(now) {
			return violation(RuleScreeningStarted, "screening %d has already started", sc.ID)
		}
		hall := sc.Hall()
		for _, k := range seats {
			if !hall.Contains(k) {
				return invalid("seats", "seat %s is outside the %dx%d hall", k, hall.Rows, hall.SeatsPerRow)
			}
		}
		if _, err := tx.ExpireScreeningHolds(ctx, sc.ID, now); err != nil {
			return err
		}
		taken, err := tx.OccupiedSeats(ctx, sc.ID, seats, now)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			out.Conflict = &SeatConflict{Seats: taken}
			return nil
		}
		tickets := make([]*model.Ticket, len(seats))
		for i, k := range seats {
			tickets[i] = &model.Ticket{
				ScreeningID: sc.ID,
				UserID:      in.UserID,
				Seat:        k,
				Status:      model.TicketHeld,
				ExpiresAt:   &expires,
				OrderToken:  &token,
				Contact:     strings.TrimSpace(in.Contact),
				CreatedAt:   now,
			}
		}
		if err := tx.InsertTickets(ctx, tickets); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errSeatRace
			}
			return err
		}
		hold := &Hold{ScreeningID: sc.ID, ExpiresAt: expires, OrderToken: token}
		for _, t := range tickets {
			hold.Tickets = append(hold.Tickets, *t)
		}
		out.Hold = hold
		return nil
	})
	if errors.Is(err, errSeatRace) {
		// the unique key caught a concurrent insert; report what is taken now
		taken, uerr := s.takenAmong(ctx, in.ScreeningID, seats, now)
		if uerr != nil {
			return ReserveOutcome{}, storeErr("reserve seats", uerr)
		}
		return ReserveOutcome{Conflict: &SeatConflict{Seats: taken}}, nil
	}
	if err != nil {
		return ReserveOutcome{}, storeErr("reserve seats", err)
	}
	if out.Hold != nil {
		s.log.LogHoldCreated(in.ScreeningID, in.UserID, len(out.Hold.Tickets), expires)
	}
	return out, nil
}

func (s *ReservationService) takenAmong(ctx context.Context, screeningID uint64, seats []model.SeatKey, now time.Time) ([]model.SeatKey, error) {
	all, err := s.store.UnavailableSeats(ctx, screeningID, now)
	if err != nil {
		return nil, err
	}
	want := make(map[model.SeatKey]bool, len(seats))
	for _, k := range seats {
		want[k] = true
	}
	var out []model.SeatKey
	for _, k := range all {
		if want[k] {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		// the competing hold was released before we looked; still a conflict
		out = seats
	}
	return out, nil
}

// SeatAssignment names one paid seat.
type SeatAssignment struct {
	ScreeningID uint64
	Seat        model.SeatKey
}

// ConfirmInput is a payment confirmation for held seats.
type ConfirmInput struct {
	// OrderToken must be the token issued with the holds.
	OrderToken string
	// UserID, when non-zero, must own every hold.
	UserID      uint64
	Assignments []SeatAssignment
}

// ConfirmResult describes a confirmed order.  Duplicate is set when the
// order token had already been processed; nothing was written then.
type ConfirmResult struct {
	Payment   *model.Payment
	Tickets   []model.Ticket
	Duplicate bool
}

var errDuplicateOrder = errors.New("order already confirmed")

// Confirm turns held seats into sold tickets.  It is idempotent on the
// order token.  Seats not held under the token, or whose hold expired,
// yield a ReservationLostError and leave everything unchanged.
func (s *ReservationService) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	token := strings.TrimSpace(in.OrderToken)
	if token == "" {
		return ConfirmResult{}, invalid("order_token", "is required")
	}
	if len(token) > 100 {
		return ConfirmResult{}, invalid("order_token", "is too long")
	}
	if len(in.Assignments) == 0 {
		return ConfirmResult{}, invalid("seats", "at least one seat is required")
	}
	screeningID := in.Assignments[0].ScreeningID
	keys := make([]model.SeatKey, len(in.Assignments))
	for i, a := range in.Assignments {
		if a.ScreeningID == 0 {
			return ConfirmResult{}, invalid("seats", "screening_id is required")
		}
		if a.ScreeningID != screeningID {
			return ConfirmResult{}, invalid("seats", "all seats must belong to one screening")
		}
		keys[i] = a.Seat
	}
	seats, err := normalizeSeats("seats", keys, 0)
	if err != nil {
		return ConfirmResult{}, err
	}

	now := s.clock.Now()
	var (
		res    ConfirmResult
		detail *model.ScreeningDetail
	)
	err = s.store.WithReservationTx(ctx, func(tx store.ReservationTx) error {
		if p, err := tx.PaymentByOrderToken(ctx, token); err == nil {
			res = ConfirmResult{Payment: p, Duplicate: true}
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		pay := &model.Payment{OrderToken: token, UserID: in.UserID, ScreeningID: screeningID, CreatedAt: now}
		if err := tx.InsertPayment(ctx, pay); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errDuplicateOrder
			}
			return err
		}
		sc, err := tx.LockScreening(ctx, screeningID)
		if err != nil {
			return notFound(err, ErrScreeningNotFound)
		}
		held, err := tx.HeldTickets(ctx, screeningID, in.UserID, token, seats, now)
		if err != nil {
			return err
		}
		if sc.IsCancelled || len(held) != len(seats) {
			return &ReservationLostError{OrderToken: token, Missing: missingSeats(seats, held, sc.IsCancelled)}
		}
		ids := make([]uint64, len(held))
		for i := range held {
			ids[i] = held[i].ID
		}
		if err := tx.MarkSold(ctx, ids, sc.PriceCents, token, now); err != nil {
			return err
		}
		// one token is issued per hold, so every ticket has the same holder
		pay.UserID = held[0].UserID
		pay.AmountCents = sc.PriceCents * int64(len(held))
		pay.TicketCount = len(held)
		if err := tx.UpdatePaymentTotals(ctx, pay.ID, pay.UserID, pay.AmountCents, pay.TicketCount); err != nil {
			return err
		}
		for i := range held {
			held[i].Status = model.TicketSold
			held[i].PriceCents = sc.PriceCents
			held[i].OrderToken = &token
			held[i].SoldAt = &now
			held[i].ExpiresAt = nil
		}
		res = ConfirmResult{Payment: pay, Tickets: held}
		detail = sc
		return nil
	})
	if errors.Is(err, errDuplicateOrder) {
		p, perr := s.store.PaymentByOrderToken(ctx, token)
		if perr != nil {
			return ConfirmResult{}, storeErr("confirm order", perr)
		}
		return ConfirmResult{Payment: p, Duplicate: true}, nil
	}
	if err != nil {
		return ConfirmResult{}, storeErr("confirm order", err)
	}
	if res.Duplicate {
		return res, nil
	}

	s.log.LogSaleConfirmed(token, screeningID, len(res.Tickets), res.Payment.AmountCents)
	labels := make([]string, len(res.Tickets))
	for i, t := range res.Tickets {
		labels[i] = t.Seat.String()
	}
	ev := SaleConfirmed{
		OrderToken:  token,
		UserID:      res.Payment.UserID,
		ScreeningID: screeningID,
		MovieTitle:  detail.MovieTitle,
		HallName:    detail.HallName,
		Seats:       labels,
		AmountCents: res.Payment.AmountCents,
		ConfirmedAt: now.Format(time.RFC3339),
	}
	if err := s.notifier.NotifySaleConfirmed(ctx, ev); err != nil {
		s.log.WithError(err).Warn("sale confirmed notice not delivered", "order_token", token)
	}
	return res, nil
}

func missingSeats(want []model.SeatKey, held []model.Ticket, all bool) []model.SeatKey {
	if all {
		return want
	}
	have := make(map[model.SeatKey]bool, len(held))
	for _, t := range held {
		have[t.Seat] = true
	}
	var out []model.SeatKey
	for _, k := range want {
		if !have[k] {
			out = append(out, k)
		}
	}
	return out
}

// Release drops the user's unexpired holds on a screening, or on every
// screening when screeningID is 0.  Releasing nothing is not an error.
func (s *ReservationService) Release(ctx context.Context, userID, screeningID uint64) (int64, error) {
	if userID == 0 {
		return 0, invalid("user_id", "is required")
	}
	now := s.clock.Now()
	var n int64
	err := s.store.WithReservationTx(ctx, func(tx store.ReservationTx) error {
		var err error
		n, err = tx.ReleaseHolds(ctx, userID, screeningID, now)
		return err
	})
	if err != nil {
		return 0, storeErr("release holds", err)
	}
	return n, nil
}

// CancelSaleInput identifies the ticket to refund.  A zero UserID is a
// staff action; otherwise the customer must own the ticket and be inside
// the refund window.
type CancelSaleInput struct {
	TicketID uint64
	UserID   uint64
}

// RefundResult describes a refunded ticket.  The money movement itself is
// done by the payment provider.
type RefundResult struct {
	Ticket          model.Ticket
	RefundCents     int64
	AlreadyRefunded bool
}

// CancelSale moves a SOLD ticket to REFUNDED.  Refunding an already
// refunded ticket is a no-op.
func (s *ReservationService) CancelSale(ctx context.Context, in CancelSaleInput) (RefundResult, error) {
	if in.TicketID == 0 {
		return RefundResult{}, invalid("ticket_id", "is required")
	}
	now := s.clock.Now()
	var res RefundResult
	err := s.store.WithReservationTx(ctx, func(tx store.ReservationTx) error {
		t, err := tx.LockTicket(ctx, in.TicketID)
		if err != nil {
			return notFound(err, ErrTicketNotFound)
		}
		if in.UserID != 0 && t.UserID != in.UserID {
			return ErrForbidden
		}
		switch t.Status {
		case model.TicketRefunded:
			res = RefundResult{Ticket: *t, RefundCents: t.PriceCents, AlreadyRefunded: true}
			return nil
		case model.TicketSold:
		default:
			return violation(RuleNotSold, "ticket %d is %s; only sold tickets can be refunded", t.ID, t.Status)
		}
		if in.UserID != 0 {
			sc, err := tx.ScreeningDetail(ctx, t.ScreeningID)
			if err != nil {
				return notFound(err, ErrScreeningNotFound)
			}
			if sc.StartsAt.Sub(now) < s.cfg.RefundDeadline {
				return violation(RuleRefundWindow, "tickets can be refunded until %d minutes before the start",
					int(s.cfg.RefundDeadline/time.Minute))
			}
		}
		if err := tx.MarkRefunded(ctx, t.ID, now); err != nil {
			return err
		}
		t.Status = model.TicketRefunded
		t.RefundedAt = &now
		res = RefundResult{Ticket: *t, RefundCents: t.PriceCents}
		return nil
	})
	if err != nil {
		return RefundResult{}, storeErr("cancel sale", err)
	}
	if !res.AlreadyRefunded {
		s.log.Info("ticket refunded", "ticket_id", res.Ticket.ID, "refund_cents", res.RefundCents)
	}
	return res, nil
}
