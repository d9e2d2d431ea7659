package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// PaymentRepo stores one reconciliation row per confirmed payment order.
// order_token is unique; that key is what makes confirmation idempotent.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, order_token, user_id, screening_id, amount_cents, ticket_count, created_at`

// GetByOrderToken finds a payment by its order token, optionally locking
// it.  Missing rows yield store.ErrNotFound.
func (r *PaymentRepo) GetByOrderToken(ctx context.Context, q querier, token string, lock bool) (*model.Payment, error) {
	sel := `SELECT ` + paymentColumns + ` FROM payments WHERE order_token = ?`
	if lock {
		sel += ` FOR UPDATE`
	}
	var p model.Payment
	err := q.QueryRowContext(ctx, sel, token).Scan(&p.ID, &p.OrderToken, &p.UserID, &p.ScreeningID,
		&p.AmountCents, &p.TicketCount, &p.CreatedAt)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &p, nil
}

// CreateTx inserts a payment row.  A known order token yields
// store.ErrDuplicate; a concurrent insert of the same token blocks on the
// unique key until the first transaction finishes.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payments (order_token, user_id, screening_id, amount_cents, ticket_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.OrderToken, p.UserID, p.ScreeningID, p.AmountCents, p.TicketCount, p.CreatedAt.UTC())
	if err != nil {
		return mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// UpdateTotalsTx sets the buyer, amount and ticket count once the order's
// tickets are known.
func (r *PaymentRepo) UpdateTotalsTx(ctx context.Context, tx *sql.Tx, id, userID uint64, amountCents int64, count int) error {
	_, err := tx.ExecContext(ctx, `UPDATE payments SET user_id = ?, amount_cents = ?, ticket_count = ? WHERE id = ?`,
		userID, amountCents, count, id)
	return err
}
