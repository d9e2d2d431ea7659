package handler

import (
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/service"
)

type hallResponse struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Rows        uint32 `json:"rows"`
	SeatsPerRow uint32 `json:"seats_per_row"`
	Capacity    int    `json:"capacity"`
}

func newHallResponse(h model.Hall) hallResponse {
	return hallResponse{ID: h.ID, Name: h.Name, Rows: h.Rows, SeatsPerRow: h.SeatsPerRow, Capacity: h.Capacity()}
}

type movieResponse struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	DurationMin uint32 `json:"duration_min"`
	PriceCents  int64  `json:"price_cents"`
}

func newMovieResponse(m model.Movie) movieResponse {
	return movieResponse{ID: m.ID, Title: m.Title, DurationMin: m.DurationMin, PriceCents: m.PriceCents}
}

type screeningResponse struct {
	ID          uint64     `json:"id"`
	HallID      uint64     `json:"hall_id"`
	MovieID     uint64     `json:"movie_id"`
	MovieTitle  string     `json:"movie_title,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	OccupiedTil *time.Time `json:"occupied_until,omitempty"`
	IsCancelled bool       `json:"is_cancelled"`
}

func newScreeningResponse(s model.Screening, loc *time.Location) screeningResponse {
	return screeningResponse{ID: s.ID, HallID: s.HallID, MovieID: s.MovieID, StartsAt: s.StartsAt.In(loc), IsCancelled: s.IsCancelled}
}

func newDayEntryResponse(e service.DayEntry, loc *time.Location) screeningResponse {
	r := newScreeningResponse(e.Screening.Screening, loc)
	r.MovieTitle = e.Screening.MovieTitle
	end := e.Occupied.End.In(loc)
	r.OccupiedTil = &end
	return r
}

type ticketResponse struct {
	ID          uint64     `json:"id"`
	ScreeningID uint64     `json:"screening_id"`
	Seat        string     `json:"seat"`
	Status      string     `json:"status"`
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	PriceCents  int64      `json:"price_cents"`
	SoldAt      *time.Time `json:"sold_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
}

func newTicketResponse(t model.Ticket) ticketResponse {
	return ticketResponse{
		ID:          t.ID,
		ScreeningID: t.ScreeningID,
		Seat:        t.Seat.String(),
		Status:      string(t.Status),
		AccessToken: t.AccessToken,
		ExpiresAt:   t.ExpiresAt,
		PriceCents:  t.PriceCents,
		SoldAt:      t.SoldAt,
		RefundedAt:  t.RefundedAt,
	}
}

func newTicketResponses(ts []model.Ticket) []ticketResponse {
	out := make([]ticketResponse, len(ts))
	for i, t := range ts {
		out[i] = newTicketResponse(t)
	}
	return out
}
