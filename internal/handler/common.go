// Package handler maps HTTP requests onto the scheduling and reservation
// services and their results onto JSON responses.
package handler

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/middleware"
	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/service"
)

// Scheduler is the scheduling surface used by the handlers.
type Scheduler interface {
	Schedule(ctx context.Context, in service.ScheduleInput) (service.ScheduleOutcome, error)
	FreeSlots(ctx context.Context, hallID, movieID uint64, date time.Time) ([]time.Time, error)
	DaySchedule(ctx context.Context, hallID uint64, date time.Time) ([]service.DayEntry, error)
	Location() *time.Location
}

// Reservations is the reservation surface used by the handlers.
type Reservations interface {
	Reserve(ctx context.Context, in service.ReserveInput) (service.ReserveOutcome, error)
	Confirm(ctx context.Context, in service.ConfirmInput) (service.ConfirmResult, error)
	Release(ctx context.Context, userID, screeningID uint64) (int64, error)
	CancelSale(ctx context.Context, in service.CancelSaleInput) (service.RefundResult, error)
	SeatMap(ctx context.Context, screeningID uint64) (service.SeatMap, error)
}

// Canceller cancels whole screenings.
type Canceller interface {
	CancelScreening(ctx context.Context, screeningID uint64) (service.CancellationResult, error)
}

// Catalog persists halls and movies and lists a customer's tickets.
type Catalog interface {
	CreateHall(ctx context.Context, h *model.Hall) error
	ListHalls(ctx context.Context) ([]model.Hall, error)
	CreateMovie(ctx context.Context, m *model.Movie) error
	ListMovies(ctx context.Context) ([]model.Movie, error)
	TicketsByUser(ctx context.Context, userID uint64) ([]model.Ticket, error)
}

// Purger drops cached listings after a write changed them.
type Purger func(ctx context.Context) error

// RequestValidator adapts validator/v10 to echo.Validator.  Field names in
// errors are the JSON names.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator builds the echo validator.
func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			msg := "failed " + fe.Tag()
			if fe.Param() != "" {
				msg += "=" + fe.Param()
			}
			return &service.ValidationError{Field: fe.Field(), Message: msg}
		}
		return &service.ValidationError{Message: err.Error()}
	}
	return nil
}

// bind decodes and validates the request body into dst.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return &service.ValidationError{Message: "invalid request body"}
	}
	return c.Validate(dst)
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

// parseDate reads ?date=YYYY-MM-DD in loc, defaulting to today.
func parseDate(c echo.Context, loc *time.Location, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam("date"))
	if raw == "" {
		return now.In(loc), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, &service.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return d, nil
}

// parseStart accepts RFC 3339 or a wall-clock "YYYY-MM-DDTHH:MM" read in loc.
func parseStart(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &service.ValidationError{Field: "starts_at", Message: "must be RFC 3339 or YYYY-MM-DDTHH:MM"}
}

// writeError maps service errors to status codes and JSON bodies.
func writeError(c echo.Context, err error) error {
	var (
		ve *service.ValidationError
		rv *service.RuleViolation
		rl *service.ReservationLostError
		se *service.StoreError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "field": ve.Field, "message": ve.Message})
	case errors.As(err, &rv):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": rv.Rule, "message": rv.Message})
	case errors.As(err, &rl):
		return c.JSON(http.StatusGone, echo.Map{
			"error":         "reservation_lost",
			"order_token":   rl.OrderToken,
			"missing_seats": seatLabels(rl.Missing),
		})
	case errors.Is(err, service.ErrScheduleRace):
		return c.JSON(http.StatusConflict, echo.Map{"error": "schedule_race", "message": err.Error(), "retryable": true})
	case errors.Is(err, service.ErrHallNotFound), errors.Is(err, service.ErrMovieNotFound),
		errors.Is(err, service.ErrScreeningNotFound), errors.Is(err, service.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.As(err, &se):
		middleware.Logger(c).WithError(err).Error("store failure", "op", se.Op)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable", "retryable": true})
	}
	middleware.Logger(c).WithError(err).Error("unhandled error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func seatLabels(keys []model.SeatKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func parseSeatLabels(field string, labels []string) ([]model.SeatKey, error) {
	out := make([]model.SeatKey, len(labels))
	for i, l := range labels {
		k, err := model.ParseSeatKey(l)
		if err != nil {
			return nil, &service.ValidationError{Field: field, Message: err.Error()}
		}
		out[i] = k
	}
	return out, nil
}

func purge(c echo.Context, p Purger) {
	if p == nil {
		return
	}
	if err := p(c.Request().Context()); err != nil {
		middleware.Logger(c).WithError(err).Warn("cache purge failed")
	}
}
