package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives

	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// HallRepo provides methods to create, read and lock halls.
type HallRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

const hallColumns = `id, name, seat_rows, seats_per_row, created_at`

func scanHall(row interface{ Scan(...any) error }, h *model.Hall) error {
	return row.Scan(&h.ID, &h.Name, &h.Rows, &h.SeatsPerRow, &h.CreatedAt)
}

// Create inserts a hall and reads it back so CreatedAt is populated.
// A duplicate name yields store.ErrDuplicate.
func (r *HallRepo) Create(ctx context.Context, h *model.Hall) error {
	const q = `INSERT INTO halls (name, seat_rows, seats_per_row) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, h.Name, h.Rows, h.SeatsPerRow)
	if err != nil {
		return mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return scanHall(r.db.QueryRowContext(ctx, `SELECT `+hallColumns+` FROM halls WHERE id = ?`, h.ID), h)
}

// GetByID retrieves a hall.  It returns store.ErrNotFound when no row matches.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	var h model.Hall
	if err := scanHall(r.db.QueryRowContext(ctx, `SELECT `+hallColumns+` FROM halls WHERE id = ?`, id), &h); err != nil {
		return nil, mapReadErr(err)
	}
	return &h, nil
}

// List returns all halls ordered by name.
func (r *HallRepo) List(ctx context.Context) ([]model.Hall, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+hallColumns+` FROM halls ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Hall
	for rows.Next() {
		var h model.Hall
		if err := scanHall(rows, &h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LockTx takes an exclusive row lock on the hall for the rest of tx.  All
// screening inserts for a hall go through this lock, which serializes
// concurrent scheduling attempts in the same hall.
func (r *HallRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM halls WHERE id = ? FOR UPDATE`, id).Scan(&got)
	return mapReadErr(err)
}
