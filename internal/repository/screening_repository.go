package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// ScreeningRepo manages persistence for screenings.  The schema carries a
// unique key on (hall_id, starts_at, active_slot) where active_slot is NULL
// for cancelled rows, so two active screenings can never share a start.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo constructs a ScreeningRepo with the given DB handle.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo { return &ScreeningRepo{db: db} }

// CreateTx inserts a screening inside tx and populates ID and CreatedAt.
// An active screening at the same hall and start yields store.ErrDuplicate.
func (r *ScreeningRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Screening) error {
	const q = `INSERT INTO screenings (hall_id, movie_id, starts_at) VALUES (?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.HallID, s.MovieID, s.StartsAt.UTC())
	if err != nil {
		return mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return tx.QueryRowContext(ctx, `SELECT is_cancelled, created_at FROM screenings WHERE id = ?`, s.ID).
		Scan(&s.IsCancelled, &s.CreatedAt)
}

// ListActive returns the non-cancelled screenings of a hall whose start
// lies in [from, to), joined with the movie duration and ordered by start.
func (r *ScreeningRepo) ListActive(ctx context.Context, q querier, hallID uint64, from, to time.Time) ([]model.ScheduledScreening, error) {
	const sel = `SELECT s.id, s.hall_id, s.movie_id, s.starts_at, s.is_cancelled, s.created_at, m.title, m.duration_min
               FROM screenings s
               JOIN movies m ON m.id = s.movie_id
               WHERE s.hall_id = ? AND s.is_cancelled = 0 AND s.starts_at >= ? AND s.starts_at < ?
               ORDER BY s.starts_at ASC`
	rows, err := q.QueryContext(ctx, sel, hallID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ScheduledScreening
	for rows.Next() {
		var s model.ScheduledScreening
		if err := rows.Scan(&s.ID, &s.HallID, &s.MovieID, &s.StartsAt, &s.IsCancelled, &s.CreatedAt,
			&s.MovieTitle, &s.DurationMin); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Detail loads a screening with its movie and hall.  With lock set the
// screening row is locked FOR UPDATE, which only makes sense inside a
// transaction.  Missing rows yield store.ErrNotFound.
func (r *ScreeningRepo) Detail(ctx context.Context, q querier, id uint64, lock bool) (*model.ScreeningDetail, error) {
	sel := `SELECT s.id, s.hall_id, s.movie_id, s.starts_at, s.is_cancelled, s.created_at,
                   m.title, m.duration_min, m.price_cents, h.name, h.seat_rows, h.seats_per_row
            FROM screenings s
            JOIN movies m ON m.id = s.movie_id
            JOIN halls h ON h.id = s.hall_id
            WHERE s.id = ?`
	if lock {
		sel += ` FOR UPDATE OF s`
	}
	var d model.ScreeningDetail
	err := q.QueryRowContext(ctx, sel, id).Scan(&d.ID, &d.HallID, &d.MovieID, &d.StartsAt, &d.IsCancelled, &d.CreatedAt,
		&d.MovieTitle, &d.DurationMin, &d.PriceCents, &d.HallName, &d.Rows, &d.SeatsPerRow)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &d, nil
}

// MarkCancelledTx flags the screening as cancelled, which also frees its
// (hall, start) slot in the unique key.
func (r *ScreeningRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE screenings SET is_cancelled = 1 WHERE id = ?`, id)
	return err
}
