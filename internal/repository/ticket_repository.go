package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

// TicketRepo provides data access to the tickets table.  A seat is taken
// while it has a SOLD ticket or a HELD ticket whose expires_at is in the
// future; the generated column `occupying` mirrors that for HELD/SOLD rows
// and backs a unique key on (screening_id, row_num, seat_num, occupying).
// Stale HELD rows must therefore be moved to EXPIRED before their seat can
// be inserted again.  All timestamps are UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, screening_id, user_id, row_num, seat_num, status, access_token, expires_at,
                       price_cents, order_token, contact, created_at, sold_at, refunded_at`

func scanTicket(row interface{ Scan(...any) error }, t *model.Ticket) error {
	var (
		status    string
		expiresAt sql.NullTime
		order     sql.NullString
		soldAt    sql.NullTime
		refunded  sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.ScreeningID, &t.UserID, &t.Seat.Row, &t.Seat.Seat, &status, &t.AccessToken,
		&expiresAt, &t.PriceCents, &order, &t.Contact, &t.CreatedAt, &soldAt, &refunded); err != nil {
		return err
	}
	t.Status = model.TicketStatus(status)
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	if order.Valid {
		t.OrderToken = &order.String
	}
	if soldAt.Valid {
		t.SoldAt = &soldAt.Time
	}
	if refunded.Valid {
		t.RefundedAt = &refunded.Time
	}
	return nil
}

func scanTickets(rows *sql.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ExpireByScreeningTx moves the screening's HELD tickets whose expiry has
// passed to EXPIRED and returns how many moved.
func (r *TicketRepo) ExpireByScreeningTx(ctx context.Context, tx *sql.Tx, screeningID uint64, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = 'EXPIRED' WHERE screening_id = ? AND status = 'HELD' AND expires_at <= ?`,
		screeningID, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireBatch moves at most limit expired HELD tickets across all
// screenings to EXPIRED.  It is a single guarded UPDATE so it cannot touch
// a hold that was converted to SOLD in the meantime.
func (r *TicketRepo) ExpireBatch(ctx context.Context, now time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = 'EXPIRED' WHERE status = 'HELD' AND expires_at <= ? ORDER BY expires_at LIMIT ?`,
		now.UTC(), limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OccupiedSeatsTx returns which of seats are SOLD or HELD with an expiry
// after now.
func (r *TicketRepo) OccupiedSeatsTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seats []model.SeatKey, now time.Time) ([]model.SeatKey, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	tuples, args := seatTuples(seats)
	q := `SELECT row_num, seat_num FROM tickets
          WHERE screening_id = ? AND (status = 'SOLD' OR (status = 'HELD' AND expires_at > ?))
            AND (row_num, seat_num) IN (` + tuples + `)
          ORDER BY row_num, seat_num`
	rows, err := tx.QueryContext(ctx, q, append([]any{screeningID, now.UTC()}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// Unavailable lists every seat of the screening that is SOLD or HELD with
// an expiry after now.  Availability is computed here at read time, so an
// expired hold is free even before the sweeper has run.
func (r *TicketRepo) Unavailable(ctx context.Context, screeningID uint64, now time.Time) ([]model.SeatKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT row_num, seat_num FROM tickets
         WHERE screening_id = ? AND (status = 'SOLD' OR (status = 'HELD' AND expires_at > ?))
         ORDER BY row_num, seat_num`,
		screeningID, now.UTC())
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

func scanSeats(rows *sql.Rows) ([]model.SeatKey, error) {
	defer rows.Close()
	var out []model.SeatKey
	for rows.Next() {
		var k model.SeatKey
		if err := rows.Scan(&k.Row, &k.Seat); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// randomToken generates a random hexadecimal string from n bytes of
// crypto/rand output.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateMultipleTx inserts HELD tickets in one statement and assigns their
// IDs.  Each ticket without an AccessToken gets a fresh 32 character one;
// OrderToken, when set, links the hold to the order that may buy it.
// A seat that already has a HELD or SOLD ticket yields store.ErrDuplicate.
func (r *TicketRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, tickets []*model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (screening_id, user_id, row_num, seat_num, status, access_token, expires_at, price_cents, order_token, contact) VALUES `
	args := make([]any, 0, len(tickets)*10)
	for i, t := range tickets {
		if t.AccessToken == "" {
			tok, err := randomToken(16)
			if err != nil {
				return err
			}
			t.AccessToken = tok
		}
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		var exp, order any
		if t.ExpiresAt != nil {
			exp = t.ExpiresAt.UTC()
		}
		if t.OrderToken != nil {
			order = *t.OrderToken
		}
		args = append(args, t.ScreeningID, t.UserID, t.Seat.Row, t.Seat.Seat, string(t.Status), t.AccessToken, exp, t.PriceCents, order, t.Contact)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	// MySQL reports the first id of a multi-row insert; with
	// innodb_autoinc_lock_mode 1 or 2 and a single statement the block is
	// consecutive.
	first, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i, t := range tickets {
		t.ID = uint64(first) + uint64(i)
	}
	return nil
}

// ReleaseTx moves a user's unexpired HELD tickets to RELEASED.  A zero
// screeningID releases across all screenings.
func (r *TicketRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, userID, screeningID uint64, now time.Time) (int64, error) {
	q := `UPDATE tickets SET status = 'RELEASED' WHERE user_id = ? AND status = 'HELD' AND expires_at > ?`
	args := []any{userID, now.UTC()}
	if screeningID != 0 {
		q += ` AND screening_id = ?`
		args = append(args, screeningID)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HeldForUpdateTx locks and returns the unexpired HELD tickets for the
// given seats that were issued under orderToken.  A non-zero userID
// restricts the match to that holder.
func (r *TicketRepo) HeldForUpdateTx(ctx context.Context, tx *sql.Tx, screeningID, userID uint64, orderToken string, seats []model.SeatKey, now time.Time) ([]model.Ticket, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	tuples, seatArgs := seatTuples(seats)
	q := `SELECT ` + ticketColumns + ` FROM tickets
          WHERE screening_id = ? AND status = 'HELD' AND expires_at > ? AND order_token = ?`
	args := []any{screeningID, now.UTC(), orderToken}
	if userID != 0 {
		q += ` AND user_id = ?`
		args = append(args, userID)
	}
	q += ` AND (row_num, seat_num) IN (` + tuples + `) ORDER BY row_num, seat_num FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, append(args, seatArgs...)...)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

// MarkSoldTx converts the given HELD tickets to SOLD, stamping the price
// and order token.
func (r *TicketRepo) MarkSoldTx(ctx context.Context, tx *sql.Tx, ids []uint64, priceCents int64, orderToken string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{priceCents, orderToken, now.UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	q := `UPDATE tickets SET status = 'SOLD', price_cents = ?, order_token = ?, sold_at = ?, expires_at = NULL
          WHERE status = 'HELD' AND id IN (` + placeholders(len(ids)) + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// GetForUpdateTx locks a single ticket row.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ? FOR UPDATE`, id), &t); err != nil {
		return nil, mapReadErr(err)
	}
	return &t, nil
}

// MarkRefundedTx moves a SOLD ticket to REFUNDED.  store.ErrNotFound means
// the ticket was not SOLD.
func (r *TicketRepo) MarkRefundedTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = 'REFUNDED', refunded_at = ? WHERE id = ? AND status = 'SOLD'`, now.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SoldByScreeningTx lists the SOLD tickets of a screening.
func (r *TicketRepo) SoldByScreeningTx(ctx context.Context, tx *sql.Tx, screeningID uint64) ([]model.Ticket, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE screening_id = ? AND status = 'SOLD' ORDER BY id FOR UPDATE`, screeningID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

// RefundScreeningTx refunds every SOLD ticket of the screening and releases
// every HELD one.
func (r *TicketRepo) RefundScreeningTx(ctx context.Context, tx *sql.Tx, screeningID uint64, now time.Time) (refunded, released int64, err error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = 'REFUNDED', refunded_at = ? WHERE screening_id = ? AND status = 'SOLD'`,
		now.UTC(), screeningID)
	if err != nil {
		return 0, 0, err
	}
	if refunded, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}
	res, err = tx.ExecContext(ctx,
		`UPDATE tickets SET status = 'RELEASED' WHERE screening_id = ? AND status = 'HELD'`, screeningID)
	if err != nil {
		return 0, 0, err
	}
	if released, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}
	return refunded, released, nil
}

// ListByUser returns a customer's tickets, newest first.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? AND status IN ('HELD', 'SOLD', 'REFUNDED') ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}
