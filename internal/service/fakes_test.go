package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/config"
	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeState is the committed content of the fake database.
type fakeState struct {
	halls      map[uint64]model.Hall
	movies     map[uint64]model.Movie
	screenings map[uint64]model.Screening
	tickets    map[uint64]model.Ticket
	payments   map[string]model.Payment
	nextID     uint64
}

func newState() *fakeState {
	return &fakeState{
		halls:      map[uint64]model.Hall{},
		movies:     map[uint64]model.Movie{},
		screenings: map[uint64]model.Screening{},
		tickets:    map[uint64]model.Ticket{},
		payments:   map[string]model.Payment{},
		nextID:     1000,
	}
}

func (s *fakeState) clone() *fakeState {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.halls {
		c.halls[k] = v
	}
	for k, v := range s.movies {
		c.movies[k] = v
	}
	for k, v := range s.screenings {
		c.screenings[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

func (s *fakeState) id() uint64 {
	s.nextID++
	return s.nextID
}

// fakeStore implements the store contracts in memory.  Transactions run one
// at a time on a private copy that replaces the committed state only when
// the callback succeeds, which gives the same all-or-nothing and
// serialization guarantees the row locks give in MySQL.
type fakeStore struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex
	st     *fakeState

	// error injection
	failReads          error
	failTx             error
	insertScreeningErr error
	commits            int

	// insertTicketsErr fails InsertTickets after racingTickets have been
	// committed, as if a concurrent hold won the unique key.
	insertTicketsErr error
	racingTickets    []model.Ticket
}

var (
	_ store.ScheduleStore    = (*fakeStore)(nil)
	_ store.ReservationStore = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore { return &fakeStore{st: newState()} }

func (f *fakeStore) read() *fakeState {
	f.dataMu.RLock()
	defer f.dataMu.RUnlock()
	return f.st
}

func (f *fakeStore) addHall(name string, rows, perRow uint32) model.Hall {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	h := model.Hall{ID: f.st.id(), Name: name, Rows: rows, SeatsPerRow: perRow}
	f.st.halls[h.ID] = h
	return h
}

func (f *fakeStore) addMovie(title string, mins uint32, price int64) model.Movie {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	m := model.Movie{ID: f.st.id(), Title: title, DurationMin: mins, PriceCents: price, IsActive: true}
	f.st.movies[m.ID] = m
	return m
}

func (f *fakeStore) addScreening(hallID, movieID uint64, start time.Time) model.Screening {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	s := model.Screening{ID: f.st.id(), HallID: hallID, MovieID: movieID, StartsAt: start.UTC()}
	f.st.screenings[s.ID] = s
	return s
}

func (f *fakeStore) ticketsOf(screeningID uint64) []model.Ticket {
	st := f.read()
	var out []model.Ticket
	for _, t := range st.tickets {
		if t.ScreeningID == screeningID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) activeScreenings() []model.ScheduledScreening {
	st := f.read()
	var out []model.ScheduledScreening
	for _, s := range st.screenings {
		if !s.IsCancelled {
			m := st.movies[s.MovieID]
			out = append(out, model.ScheduledScreening{Screening: s, MovieTitle: m.Title, DurationMin: m.DurationMin})
		}
	}
	return out
}

func (f *fakeStore) withTx(fn func(st *fakeState) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	if f.failTx != nil {
		return f.failTx
	}
	work := f.read().clone()
	if err := fn(work); err != nil {
		return err
	}
	f.dataMu.Lock()
	f.st = work
	f.commits++
	f.dataMu.Unlock()
	return nil
}

// Catalog and ScheduleStore

func (f *fakeStore) HallByID(_ context.Context, id uint64) (*model.Hall, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	h, ok := f.read().halls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &h, nil
}

func (f *fakeStore) MovieByID(_ context.Context, id uint64) (*model.Movie, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	m, ok := f.read().movies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func activeIn(st *fakeState, hallID uint64, from, to time.Time) []model.ScheduledScreening {
	var out []model.ScheduledScreening
	for _, s := range st.screenings {
		if s.HallID != hallID || s.IsCancelled || s.StartsAt.Before(from) || !s.StartsAt.Before(to) {
			continue
		}
		m := st.movies[s.MovieID]
		out = append(out, model.ScheduledScreening{Screening: s, MovieTitle: m.Title, DurationMin: m.DurationMin})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

func (f *fakeStore) ActiveScreenings(_ context.Context, hallID uint64, from, to time.Time) ([]model.ScheduledScreening, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	return activeIn(f.read(), hallID, from, to), nil
}

func (f *fakeStore) WithScheduleTx(_ context.Context, fn func(tx store.ScheduleTx) error) error {
	return f.withTx(func(st *fakeState) error { return fn(&fakeTx{f: f, st: st}) })
}

// ReservationStore

func detailOf(st *fakeState, id uint64) (*model.ScreeningDetail, error) {
	s, ok := st.screenings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m := st.movies[s.MovieID]
	h := st.halls[s.HallID]
	return &model.ScreeningDetail{
		Screening:   s,
		MovieTitle:  m.Title,
		DurationMin: m.DurationMin,
		PriceCents:  m.PriceCents,
		HallName:    h.Name,
		Rows:        h.Rows,
		SeatsPerRow: h.SeatsPerRow,
	}, nil
}

func (f *fakeStore) ScreeningDetail(_ context.Context, id uint64) (*model.ScreeningDetail, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	return detailOf(f.read(), id)
}

func (f *fakeStore) UnavailableSeats(_ context.Context, screeningID uint64, now time.Time) ([]model.SeatKey, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	var out []model.SeatKey
	for _, t := range f.read().tickets {
		if t.ScreeningID == screeningID && t.BlocksSeat(now) {
			out = append(out, t.Seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (f *fakeStore) PaymentByOrderToken(_ context.Context, token string) (*model.Payment, error) {
	p, ok := f.read().payments[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) ExpireHolds(_ context.Context, now time.Time, limit int) (int64, error) {
	var n int64
	err := f.withTx(func(st *fakeState) error {
		ids := make([]uint64, 0)
		for id, t := range st.tickets {
			if t.Status == model.TicketHeld && !t.ExpiresAt.After(now) {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if int(n) >= limit {
				break
			}
			t := st.tickets[id]
			t.Status = model.TicketExpired
			st.tickets[id] = t
			n++
		}
		return nil
	})
	return n, err
}

func (f *fakeStore) WithReservationTx(_ context.Context, fn func(tx store.ReservationTx) error) error {
	return f.withTx(func(st *fakeState) error { return fn(&fakeTx{f: f, st: st}) })
}

// fakeTx works on the transaction's private state.
type fakeTx struct {
	f  *fakeStore
	st *fakeState
}

func (t *fakeTx) LockHall(_ context.Context, hallID uint64) error {
	if _, ok := t.st.halls[hallID]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (t *fakeTx) ActiveScreenings(_ context.Context, hallID uint64, from, to time.Time) ([]model.ScheduledScreening, error) {
	return activeIn(t.st, hallID, from, to), nil
}

func (t *fakeTx) InsertScreening(_ context.Context, s *model.Screening) error {
	if t.f.insertScreeningErr != nil {
		return t.f.insertScreeningErr
	}
	for _, e := range t.st.screenings {
		if e.HallID == s.HallID && !e.IsCancelled && e.StartsAt.Equal(s.StartsAt) {
			return fmt.Errorf("%w: hall %d at %s", store.ErrDuplicate, s.HallID, s.StartsAt)
		}
	}
	s.ID = t.st.id()
	t.st.screenings[s.ID] = *s
	return nil
}

func (t *fakeTx) LockScreening(_ context.Context, id uint64) (*model.ScreeningDetail, error) {
	return detailOf(t.st, id)
}

func (t *fakeTx) ScreeningDetail(_ context.Context, id uint64) (*model.ScreeningDetail, error) {
	return detailOf(t.st, id)
}

func (t *fakeTx) MarkScreeningCancelled(_ context.Context, id uint64) error {
	s := t.st.screenings[id]
	s.IsCancelled = true
	t.st.screenings[id] = s
	return nil
}

func (t *fakeTx) ExpireScreeningHolds(_ context.Context, screeningID uint64, now time.Time) (int64, error) {
	var n int64
	for id, tk := range t.st.tickets {
		if tk.ScreeningID == screeningID && tk.Status == model.TicketHeld && !tk.ExpiresAt.After(now) {
			tk.Status = model.TicketExpired
			t.st.tickets[id] = tk
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) OccupiedSeats(_ context.Context, screeningID uint64, seats []model.SeatKey, now time.Time) ([]model.SeatKey, error) {
	want := map[model.SeatKey]bool{}
	for _, k := range seats {
		want[k] = true
	}
	var out []model.SeatKey
	for _, tk := range t.st.tickets {
		if tk.ScreeningID == screeningID && want[tk.Seat] && tk.BlocksSeat(now) {
			out = append(out, tk.Seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (f *fakeStore) commitRacing() {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	next := f.st.clone()
	for _, tk := range f.racingTickets {
		tk.ID = next.id()
		next.tickets[tk.ID] = tk
	}
	f.racingTickets = nil
	f.st = next
}

func (t *fakeTx) InsertTickets(_ context.Context, tickets []*model.Ticket) error {
	if t.f.insertTicketsErr != nil {
		t.f.commitRacing()
		return t.f.insertTicketsErr
	}
	for _, n := range tickets {
		for _, tk := range t.st.tickets {
			// mirrors the unique (screening, row, seat, occupying) key
			if tk.ScreeningID == n.ScreeningID && tk.Seat == n.Seat && tk.Status.Occupying() {
				return fmt.Errorf("%w: seat %s", store.ErrDuplicate, n.Seat)
			}
		}
	}
	for _, n := range tickets {
		n.ID = t.st.id()
		n.AccessToken = fmt.Sprintf("tok-%d", n.ID)
		t.st.tickets[n.ID] = *n
	}
	return nil
}

func (t *fakeTx) ReleaseHolds(_ context.Context, userID, screeningID uint64, now time.Time) (int64, error) {
	var n int64
	for id, tk := range t.st.tickets {
		if tk.UserID == userID && tk.Status == model.TicketHeld && tk.ExpiresAt.After(now) &&
			(screeningID == 0 || tk.ScreeningID == screeningID) {
			tk.Status = model.TicketReleased
			t.st.tickets[id] = tk
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) PaymentByOrderToken(_ context.Context, token string) (*model.Payment, error) {
	p, ok := t.st.payments[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *fakeTx) InsertPayment(_ context.Context, p *model.Payment) error {
	if _, ok := t.st.payments[p.OrderToken]; ok {
		return fmt.Errorf("%w: order %s", store.ErrDuplicate, p.OrderToken)
	}
	p.ID = t.st.id()
	t.st.payments[p.OrderToken] = *p
	return nil
}

func (t *fakeTx) UpdatePaymentTotals(_ context.Context, id, userID uint64, amountCents int64, count int) error {
	for k, p := range t.st.payments {
		if p.ID == id {
			p.UserID = userID
			p.AmountCents = amountCents
			p.TicketCount = count
			t.st.payments[k] = p
		}
	}
	return nil
}

func (t *fakeTx) HeldTickets(_ context.Context, screeningID, userID uint64, orderToken string, seats []model.SeatKey, now time.Time) ([]model.Ticket, error) {
	want := map[model.SeatKey]bool{}
	for _, k := range seats {
		want[k] = true
	}
	var out []model.Ticket
	for _, tk := range t.st.tickets {
		if tk.ScreeningID == screeningID && want[tk.Seat] && tk.Status == model.TicketHeld &&
			tk.ExpiresAt.After(now) && tk.OrderToken != nil && *tk.OrderToken == orderToken &&
			(userID == 0 || tk.UserID == userID) {
			out = append(out, tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat.Less(out[j].Seat) })
	return out, nil
}

func (t *fakeTx) MarkSold(_ context.Context, ids []uint64, priceCents int64, orderToken string, now time.Time) error {
	for _, id := range ids {
		tk := t.st.tickets[id]
		if tk.Status != model.TicketHeld {
			continue
		}
		tok := orderToken
		sold := now
		tk.Status = model.TicketSold
		tk.PriceCents = priceCents
		tk.OrderToken = &tok
		tk.SoldAt = &sold
		tk.ExpiresAt = nil
		t.st.tickets[id] = tk
	}
	return nil
}

func (t *fakeTx) LockTicket(_ context.Context, id uint64) (*model.Ticket, error) {
	tk, ok := t.st.tickets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tk, nil
}

func (t *fakeTx) MarkRefunded(_ context.Context, id uint64, now time.Time) error {
	tk, ok := t.st.tickets[id]
	if !ok || tk.Status != model.TicketSold {
		return store.ErrNotFound
	}
	tk.Status = model.TicketRefunded
	tk.RefundedAt = &now
	t.st.tickets[id] = tk
	return nil
}

func (t *fakeTx) SoldTickets(_ context.Context, screeningID uint64) ([]model.Ticket, error) {
	var out []model.Ticket
	for _, tk := range t.st.tickets {
		if tk.ScreeningID == screeningID && tk.Status == model.TicketSold {
			out = append(out, tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) RefundScreening(_ context.Context, screeningID uint64, now time.Time) (int64, int64, error) {
	var refunded, released int64
	for id, tk := range t.st.tickets {
		if tk.ScreeningID != screeningID {
			continue
		}
		switch tk.Status {
		case model.TicketSold:
			tk.Status = model.TicketRefunded
			tk.RefundedAt = &now
			refunded++
		case model.TicketHeld:
			tk.Status = model.TicketReleased
			released++
		default:
			continue
		}
		t.st.tickets[id] = tk
	}
	return refunded, released, nil
}

// recordingNotifier captures notices.
type recordingNotifier struct {
	mu            sync.Mutex
	cancellations []model.CancellationNotice
	sales         []SaleConfirmed
	err           error
}

func (n *recordingNotifier) NotifyCancellation(_ context.Context, c model.CancellationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, c)
	return n.err
}

func (n *recordingNotifier) NotifySaleConfirmed(_ context.Context, e SaleConfirmed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sales = append(n.sales, e)
	return n.err
}

// fixture wiring shared by the service tests.

var testDay = time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

func at(hh, mm int) time.Time { return testDay.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute) }

type fixture struct {
	store    *fakeStore
	clock    *fakeClock
	notifier *recordingNotifier
	sched    *SchedulingService
	res      *ReservationService
	cancel   *CancellationService
	sweeper  *ExpirySweeper
	hall     model.Hall
	movie    model.Movie
}

func newFixture() *fixture {
	fs := newFakeStore()
	clk := newClock(at(8, 0))
	n := &recordingNotifier{}
	log := logger.Discard()
	f := &fixture{
		store:    fs,
		clock:    clk,
		notifier: n,
		sched:    NewSchedulingService(fs, config.DefaultSchedulingConfig(), clk, log),
		res:      NewReservationService(fs, config.DefaultReservationConfig(), clk, n, log),
		cancel:   NewCancellationService(fs, clk, n, log),
		sweeper:  NewExpirySweeper(fs, config.SweeperConfig{Interval: time.Minute, BatchSize: 2}, clk, log),
		hall:     fs.addHall("Hall 1", 10, 20),
		movie:    fs.addMovie("Arrival", 120, 900),
	}
	// order-1, order-2, ... one per Reserve call
	var issued atomic.Int64
	f.res.newOrderToken = func() string { return fmt.Sprintf("order-%d", issued.Add(1)) }
	return f
}

func seat(r, s uint32) model.SeatKey { return model.SeatKey{Row: r, Seat: s} }
