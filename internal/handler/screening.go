package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/service"
)

// ScreeningHandler schedules, lists and cancels screenings.
type ScreeningHandler struct {
	Scheduler    Scheduler
	Canceller    Canceller
	Reservations Reservations
	Clock        service.Clock
	Purge        Purger
}

type scheduleRequest struct {
	HallID    uint64 `json:"hall_id" validate:"required"`
	MovieID   uint64 `json:"movie_id" validate:"required"`
	StartsAt  string `json:"starts_at" validate:"required"`
	AllowPast bool   `json:"allow_past"`
}

// Schedule handles POST /v1/screenings.  A taken slot answers 409 with the
// conflicting screening and suggested starts.
func (h *ScreeningHandler) Schedule(c echo.Context) error {
	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	loc := h.Scheduler.Location()
	start, err := parseStart(req.StartsAt, loc)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.Scheduler.Schedule(c.Request().Context(), service.ScheduleInput{
		HallID:    req.HallID,
		MovieID:   req.MovieID,
		StartsAt:  start,
		AllowPast: req.AllowPast,
	})
	if err != nil {
		return writeError(c, err)
	}
	if out.Conflict != nil {
		cf := out.Conflict
		suggestions := make([]time.Time, len(cf.Suggestions))
		for i, s := range cf.Suggestions {
			suggestions[i] = s.In(loc)
		}
		conflicting := newScreeningResponse(cf.Conflicting.Screening, loc)
		conflicting.MovieTitle = cf.Conflicting.MovieTitle
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "schedule_conflict",
			"conflicting": conflicting,
			"suggestions": suggestions,
		})
	}
	purge(c, h.Purge)
	return c.JSON(http.StatusCreated, newScreeningResponse(*out.Screening, loc))
}

// Cancel handles POST /v1/screenings/:id/cancel.
func (h *ScreeningHandler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.Canceller.CancelScreening(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if !res.AlreadyCancelled {
		purge(c, h.Purge)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"screening_id":      res.ScreeningID,
		"already_cancelled": res.AlreadyCancelled,
		"refunded":          res.Refunded,
		"released":          res.Released,
		"notices":           len(res.Notices),
	})
}

// DaySchedule handles GET /v1/halls/:id/screenings?date=.
func (h *ScreeningHandler) DaySchedule(c echo.Context) error {
	hallID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	loc := h.Scheduler.Location()
	date, err := parseDate(c, loc, h.Clock.Now())
	if err != nil {
		return writeError(c, err)
	}
	entries, err := h.Scheduler.DaySchedule(c.Request().Context(), hallID, date)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]screeningResponse, len(entries))
	for i, e := range entries {
		out[i] = newDayEntryResponse(e, loc)
	}
	return c.JSON(http.StatusOK, echo.Map{"hall_id": hallID, "date": date.Format(time.DateOnly), "screenings": out})
}

// FreeSlots handles GET /v1/halls/:id/free-slots?date=&movie_id=.
func (h *ScreeningHandler) FreeSlots(c echo.Context) error {
	hallID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	movieID, err := strconv.ParseUint(c.QueryParam("movie_id"), 10, 64)
	if err != nil || movieID == 0 {
		return writeError(c, &service.ValidationError{Field: "movie_id", Message: "must be a positive integer"})
	}
	loc := h.Scheduler.Location()
	date, err := parseDate(c, loc, h.Clock.Now())
	if err != nil {
		return writeError(c, err)
	}
	slots, err := h.Scheduler.FreeSlots(c.Request().Context(), hallID, movieID, date)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.In(loc)
	}
	return c.JSON(http.StatusOK, echo.Map{"hall_id": hallID, "movie_id": movieID, "slots": out})
}

// SeatMap handles GET /v1/screenings/:id/seats.
func (h *ScreeningHandler) SeatMap(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	m, err := h.Reservations.SeatMap(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"screening_id":  m.Screening.ID,
		"movie_title":   m.Screening.MovieTitle,
		"hall_name":     m.Screening.HallName,
		"starts_at":     m.Screening.StartsAt.In(h.Scheduler.Location()),
		"rows":          m.Screening.Rows,
		"seats_per_row": m.Screening.SeatsPerRow,
		"price_cents":   m.Screening.PriceCents,
		"unavailable":   seatLabels(m.Unavailable),
		"available":     m.Available,
	})
}
