package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

// Store bundles the repositories behind the store contracts consumed by
// the services.
type Store struct {
	db         *sql.DB
	Halls      *HallRepo
	Movies     *MovieRepo
	Screenings *ScreeningRepo
	Tickets    *TicketRepo
	Payments   *PaymentRepo
}

// NewStore wires all repositories to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		Halls:      NewHallRepo(db),
		Movies:     NewMovieRepo(db),
		Screenings: NewScreeningRepo(db),
		Tickets:    NewTicketRepo(db),
		Payments:   NewPaymentRepo(db),
	}
}

var (
	_ store.ScheduleStore    = (*Store)(nil)
	_ store.ReservationStore = (*Store)(nil)
)

// withTx runs fn in a transaction, rolling back unless fn returns nil and
// the commit succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CreateHall inserts a hall.
func (s *Store) CreateHall(ctx context.Context, h *model.Hall) error {
	return s.Halls.Create(ctx, h)
}

func (s *Store) ListHalls(ctx context.Context) ([]model.Hall, error) { return s.Halls.List(ctx) }

// CreateMovie inserts a movie.
func (s *Store) CreateMovie(ctx context.Context, m *model.Movie) error {
	return s.Movies.Create(ctx, m)
}

// ListMovies returns the movies that can still be scheduled.
func (s *Store) ListMovies(ctx context.Context) ([]model.Movie, error) {
	return s.Movies.ListActive(ctx)
}

func (s *Store) TicketsByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	return s.Tickets.ListByUser(ctx, userID)
}

func (s *Store) HallByID(ctx context.Context, id uint64) (*model.Hall, error) {
	return s.Halls.GetByID(ctx, id)
}

func (s *Store) MovieByID(ctx context.Context, id uint64) (*model.Movie, error) {
	return s.Movies.GetByID(ctx, id)
}

func (s *Store) ActiveScreenings(ctx context.Context, hallID uint64, from, to time.Time) ([]model.ScheduledScreening, error) {
	return s.Screenings.ListActive(ctx, s.db, hallID, from, to)
}

func (s *Store) WithScheduleTx(ctx context.Context, fn func(tx store.ScheduleTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&scheduleTx{s: s, tx: tx})
	})
}

func (s *Store) ScreeningDetail(ctx context.Context, id uint64) (*model.ScreeningDetail, error) {
	return s.Screenings.Detail(ctx, s.db, id, false)
}

func (s *Store) UnavailableSeats(ctx context.Context, screeningID uint64, now time.Time) ([]model.SeatKey, error) {
	return s.Tickets.Unavailable(ctx, screeningID, now)
}

func (s *Store) PaymentByOrderToken(ctx context.Context, token string) (*model.Payment, error) {
	return s.Payments.GetByOrderToken(ctx, s.db, token, false)
}

func (s *Store) ExpireHolds(ctx context.Context, now time.Time, limit int) (int64, error) {
	return s.Tickets.ExpireBatch(ctx, now, limit)
}

func (s *Store) WithReservationTx(ctx context.Context, fn func(tx store.ReservationTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&reservationTx{s: s, tx: tx})
	})
}

type scheduleTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *scheduleTx) LockHall(ctx context.Context, hallID uint64) error {
	return t.s.Halls.LockTx(ctx, t.tx, hallID)
}

func (t *scheduleTx) ActiveScreenings(ctx context.Context, hallID uint64, from, to time.Time) ([]model.ScheduledScreening, error) {
	return t.s.Screenings.ListActive(ctx, t.tx, hallID, from, to)
}

func (t *scheduleTx) InsertScreening(ctx context.Context, sc *model.Screening) error {
	return t.s.Screenings.CreateTx(ctx, t.tx, sc)
}

type reservationTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *reservationTx) LockScreening(ctx context.Context, id uint64) (*model.ScreeningDetail, error) {
	return t.s.Screenings.Detail(ctx, t.tx, id, true)
}

func (t *reservationTx) ScreeningDetail(ctx context.Context, id uint64) (*model.ScreeningDetail, error) {
	return t.s.Screenings.Detail(ctx, t.tx, id, false)
}

func (t *reservationTx) MarkScreeningCancelled(ctx context.Context, id uint64) error {
	return t.s.Screenings.MarkCancelledTx(ctx, t.tx, id)
}

func (t *reservationTx) ExpireScreeningHolds(ctx context.Context, screeningID uint64, now time.Time) (int64, error) {
	return t.s.Tickets.ExpireByScreeningTx(ctx, t.tx, screeningID, now)
}

func (t *reservationTx) OccupiedSeats(ctx context.Context, screeningID uint64, seats []model.SeatKey, now time.Time) ([]model.SeatKey, error) {
	return t.s.Tickets.OccupiedSeatsTx(ctx, t.tx, screeningID, seats, now)
}

func (t *reservationTx) InsertTickets(ctx context.Context, tickets []*model.Ticket) error {
	return t.s.Tickets.CreateMultipleTx(ctx, t.tx, tickets)
}

func (t *reservationTx) ReleaseHolds(ctx context.Context, userID, screeningID uint64, now time.Time) (int64, error) {
	return t.s.Tickets.ReleaseTx(ctx, t.tx, userID, screeningID, now)
}

func (t *reservationTx) PaymentByOrderToken(ctx context.Context, token string) (*model.Payment, error) {
	return t.s.Payments.GetByOrderToken(ctx, t.tx, token, true)
}

func (t *reservationTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	return t.s.Payments.CreateTx(ctx, t.tx, p)
}

func (t *reservationTx) UpdatePaymentTotals(ctx context.Context, id, userID uint64, amountCents int64, count int) error {
	return t.s.Payments.UpdateTotalsTx(ctx, t.tx, id, userID, amountCents, count)
}

func (t *reservationTx) HeldTickets(ctx context.Context, screeningID, userID uint64, orderToken string, seats []model.SeatKey, now time.Time) ([]model.Ticket, error) {
	return t.s.Tickets.HeldForUpdateTx(ctx, t.tx, screeningID, userID, orderToken, seats, now)
}

func (t *reservationTx) MarkSold(ctx context.Context, ids []uint64, priceCents int64, orderToken string, now time.Time) error {
	return t.s.Tickets.MarkSoldTx(ctx, t.tx, ids, priceCents, orderToken, now)
}

func (t *reservationTx) LockTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	return t.s.Tickets.GetForUpdateTx(ctx, t.tx, id)
}

func (t *reservationTx) MarkRefunded(ctx context.Context, ticketID uint64, now time.Time) error {
	return t.s.Tickets.MarkRefundedTx(ctx, t.tx, ticketID, now)
}

func (t *reservationTx) SoldTickets(ctx context.Context, screeningID uint64) ([]model.Ticket, error) {
	return t.s.Tickets.SoldByScreeningTx(ctx, t.tx, screeningID)
}

func (t *reservationTx) RefundScreening(ctx context.Context, screeningID uint64, now time.Time) (int64, int64, error) {
	return t.s.Tickets.RefundScreeningTx(ctx, t.tx, screeningID, now)
}
