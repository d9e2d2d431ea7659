package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// seatTuples renders "(?, ?),(?, ?)" for a row-value IN list.
func seatTuples(seats []model.SeatKey) (string, []any) {
	parts := make([]string, len(seats))
	args := make([]any, 0, len(seats)*2)
	for i, s := range seats {
		parts[i] = "(?, ?)"
		args = append(args, s.Row, s.Seat)
	}
	return strings.Join(parts, ","), args
}

// placeholders renders "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
