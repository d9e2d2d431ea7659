package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var ticketCols = []string{"id", "screening_id", "user_id", "row_num", "seat_num", "status", "access_token", "expires_at",
	"price_cents", "order_token", "contact", "created_at", "sold_at", "refunded_at"}

func TestMapWriteErr(t *testing.T) {
	assert.NoError(t, mapWriteErr(nil))

	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.ErrorIs(t, mapWriteErr(dup), store.ErrDuplicate)

	other := &mysql.MySQLError{Number: 1452, Message: "foreign key"}
	assert.Same(t, error(other), mapWriteErr(other))
	assert.False(t, isDuplicateKey(errors.New("Duplicate entry")))
}

func TestMapReadErr(t *testing.T) {
	assert.ErrorIs(t, mapReadErr(sql.ErrNoRows), store.ErrNotFound)
	boom := errors.New("boom")
	assert.Equal(t, boom, mapReadErr(boom))
	assert.NoError(t, mapReadErr(nil))
}

func TestSeatTuplesAndPlaceholders(t *testing.T) {
	tuples, args := seatTuples([]model.SeatKey{{Row: 1, Seat: 2}, {Row: 3, Seat: 4}})
	assert.Equal(t, "(?, ?),(?, ?)", tuples)
	assert.Equal(t, []any{uint32(1), uint32(2), uint32(3), uint32(4)}, args)
	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

func TestHallByIDNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("FROM halls WHERE id = ?")).WithArgs(9).WillReturnError(sql.ErrNoRows)

	_, err := s.HallByID(context.Background(), 9)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleTxLocksHallAndInserts(t *testing.T) {
	s, mock := newMock(t)
	start := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM halls WHERE id = ? FOR UPDATE")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(q("FROM screenings s JOIN movies m ON m.id = s.movie_id")).
		WithArgs(3, start.Add(-24*time.Hour), start.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hall_id", "movie_id", "starts_at", "is_cancelled", "created_at", "title", "duration_min"}).
			AddRow(1, 3, 2, start.Add(-3*time.Hour), false, now, "Heat", 120))
	mock.ExpectExec(q("INSERT INTO screenings (hall_id, movie_id, starts_at) VALUES (?, ?, ?)")).
		WithArgs(3, 4, start).WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectQuery(q("SELECT is_cancelled, created_at FROM screenings WHERE id = ?")).WithArgs(77).
		WillReturnRows(sqlmock.NewRows([]string{"is_cancelled", "created_at"}).AddRow(false, now))
	mock.ExpectCommit()

	sc := &model.Screening{HallID: 3, MovieID: 4, StartsAt: start}
	err := s.WithScheduleTx(context.Background(), func(tx store.ScheduleTx) error {
		if err := tx.LockHall(context.Background(), 3); err != nil {
			return err
		}
		existing, err := tx.ActiveScreenings(context.Background(), 3, start.Add(-24*time.Hour), start.Add(24*time.Hour))
		if err != nil {
			return err
		}
		require.Len(t, existing, 1)
		assert.Equal(t, "Heat", existing[0].MovieTitle)
		assert.Equal(t, uint32(120), existing[0].DurationMin)
		return tx.InsertScreening(context.Background(), sc)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(77), sc.ID)
	assert.Equal(t, now, sc.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleTxDuplicateRollsBack(t *testing.T) {
	s, mock := newMock(t)
	start := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO screenings")).WithArgs(3, 4, start).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_screenings_slot'"})
	mock.ExpectRollback()

	err := s.WithScheduleTx(context.Background(), func(tx store.ScheduleTx) error {
		return tx.InsertScreening(context.Background(), &model.Screening{HallID: 3, MovieID: 4, StartsAt: start})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationTxInsertsTickets(t *testing.T) {
	s, mock := newMock(t)
	exp := now.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(q("AND (row_num, seat_num) IN ((?, ?),(?, ?))")).
		WithArgs(5, now, 1, 1, 1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"row_num", "seat_num"}))
	mock.ExpectExec(q("INSERT INTO tickets (screening_id, user_id, row_num, seat_num, status, access_token, expires_at, price_cents, order_token, contact) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")).
		WithArgs(5, 8, 1, 1, "HELD", sqlmock.AnyArg(), exp, 0, "order-1", "",
			5, 8, 1, 2, "HELD", sqlmock.AnyArg(), exp, 0, "order-1", "").
		WillReturnResult(sqlmock.NewResult(40, 2))
	mock.ExpectCommit()

	seats := []model.SeatKey{{Row: 1, Seat: 1}, {Row: 1, Seat: 2}}
	order := "order-1"
	tickets := []*model.Ticket{
		{ScreeningID: 5, UserID: 8, Seat: seats[0], Status: model.TicketHeld, ExpiresAt: &exp, OrderToken: &order},
		{ScreeningID: 5, UserID: 8, Seat: seats[1], Status: model.TicketHeld, ExpiresAt: &exp, OrderToken: &order},
	}
	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		taken, err := tx.OccupiedSeats(context.Background(), 5, seats, now)
		if err != nil {
			return err
		}
		assert.Empty(t, taken)
		return tx.InsertTickets(context.Background(), tickets)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), tickets[0].ID)
	assert.Equal(t, uint64(41), tickets[1].ID)
	assert.Len(t, tickets[0].AccessToken, 32)
	assert.NotEqual(t, tickets[0].AccessToken, tickets[1].AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationTxCallbackErrorRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE tickets SET status = 'RELEASED' WHERE user_id = ? AND status = 'HELD' AND expires_at > ? AND screening_id = ?")).
		WithArgs(8, now, 5).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		n, err := tx.ReleaseHolds(context.Background(), 8, 5, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseAllScreeningsOmitsFilter(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`^UPDATE tickets SET status = 'RELEASED' WHERE user_id = \? AND status = 'HELD' AND expires_at > \?$`).
		WithArgs(8, now).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		n, err := tx.ReleaseHolds(context.Background(), 8, 0, now)
		assert.Equal(t, int64(3), n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeldTicketsScansRows(t *testing.T) {
	s, mock := newMock(t)
	exp := now.Add(5 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(q("WHERE screening_id = ? AND status = 'HELD' AND expires_at > ? AND order_token = ? AND user_id = ? AND (row_num, seat_num) IN ((?, ?)) ORDER BY row_num, seat_num FOR UPDATE")).
		WithArgs(5, now, "order-1", 8, 2, 7).
		WillReturnRows(sqlmock.NewRows(ticketCols).
			AddRow(11, 5, 8, 2, 7, "HELD", "abc", exp, 0, "order-1", "u@example.com", now, nil, nil))
	mock.ExpectCommit()

	var got []model.Ticket
	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		var err error
		got, err = tx.HeldTickets(context.Background(), 5, 8, "order-1", []model.SeatKey{{Row: 2, Seat: 7}}, now)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.TicketHeld, got[0].Status)
	assert.Equal(t, model.SeatKey{Row: 2, Seat: 7}, got[0].Seat)
	require.NotNil(t, got[0].ExpiresAt)
	assert.Equal(t, exp, *got[0].ExpiresAt)
	require.NotNil(t, got[0].OrderToken)
	assert.Equal(t, "order-1", *got[0].OrderToken)
	assert.Nil(t, got[0].SoldAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRefundedRequiresSold(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE tickets SET status = 'REFUNDED', refunded_at = ? WHERE id = ? AND status = 'SOLD'")).
		WithArgs(now, 11).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		return tx.MarkRefunded(context.Background(), 11, now)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundScreening(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("SET status = 'REFUNDED'")).WithArgs(now, 5).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q("SET status = 'RELEASED' WHERE screening_id = ? AND status = 'HELD'")).WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		refunded, released, err := tx.RefundScreening(context.Background(), 5, now)
		assert.Equal(t, int64(3), refunded)
		assert.Equal(t, int64(1), released)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireHolds(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(q("UPDATE tickets SET status = 'EXPIRED' WHERE status = 'HELD' AND expires_at <= ? ORDER BY expires_at LIMIT ?")).
		WithArgs(now, 100).WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := s.ExpireHolds(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnavailableSeats(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("(status = 'SOLD' OR (status = 'HELD' AND expires_at > ?))")).WithArgs(5, now).
		WillReturnRows(sqlmock.NewRows([]string{"row_num", "seat_num"}).AddRow(1, 1).AddRow(3, 4))

	seats, err := s.UnavailableSeats(context.Background(), 5, now)
	require.NoError(t, err)
	assert.Equal(t, []model.SeatKey{{Row: 1, Seat: 1}, {Row: 3, Seat: 4}}, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentByOrderToken(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM payments WHERE order_token = \?$`).WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_token", "user_id", "screening_id", "amount_cents", "ticket_count", "created_at"}).
			AddRow(2, "ord-1", 8, 5, 1800, 2, now))
	mock.ExpectQuery(`FROM payments WHERE order_token = \?$`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	p, err := s.PaymentByOrderToken(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), p.AmountCents)
	assert.Equal(t, 2, p.TicketCount)

	_, err = s.PaymentByOrderToken(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHallReadsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO halls (name, seat_rows, seats_per_row) VALUES (?, ?, ?)")).
		WithArgs("Hall A", 10, 20).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery(q("FROM halls WHERE id = ?")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "seat_rows", "seats_per_row", "created_at"}).AddRow(3, "Hall A", 10, 20, now))

	h := &model.Hall{Name: "Hall A", Rows: 10, SeatsPerRow: 20}
	require.NoError(t, s.CreateHall(context.Background(), h))
	assert.Equal(t, uint64(3), h.ID)
	assert.Equal(t, 200, h.Capacity())
	assert.Equal(t, now, h.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePaymentTotalsRecordsBuyer(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE payments SET user_id = ?, amount_cents = ?, ticket_count = ? WHERE id = ?")).
		WithArgs(7, 1800, 2, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		return tx.UpdatePaymentTotals(context.Background(), 3, 7, 1800, 2)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationTxScreeningDetailUsesTransaction(t *testing.T) {
	s, mock := newMock(t)
	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`JOIN halls h ON h.id = s.hall_id WHERE s.id = \?$`).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hall_id", "movie_id", "starts_at", "is_cancelled", "created_at",
			"title", "duration_min", "price_cents", "name", "seat_rows", "seats_per_row"}).
			AddRow(5, 3, 4, start, false, now, "Heat", 120, 900, "Hall A", 10, 20))
	mock.ExpectCommit()

	err := s.WithReservationTx(context.Background(), func(tx store.ReservationTx) error {
		d, err := tx.ScreeningDetail(context.Background(), 5)
		if err != nil {
			return err
		}
		assert.Equal(t, start, d.StartsAt)
		assert.Equal(t, "Hall A", d.HallName)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
