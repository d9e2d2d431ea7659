package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/service"
)

// PaymentHandler receives payment provider confirmations.
type PaymentHandler struct {
	Reservations Reservations
}

type paidSeat struct {
	ScreeningID uint64 `json:"screening_id" validate:"required"`
	Seat        string `json:"seat" validate:"required"`
}

type confirmRequest struct {
	OrderToken string     `json:"order_token" validate:"required,max=100"`
	UserID     uint64     `json:"user_id"`
	Seats      []paidSeat `json:"seats" validate:"required,min=1,dive"`
}

// Confirm handles POST /v1/payments/confirm.  Replays of a processed order
// token answer 200 with duplicate=true; lost holds answer 410.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req confirmRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	in := service.ConfirmInput{OrderToken: req.OrderToken, UserID: req.UserID}
	for _, s := range req.Seats {
		k, err := model.ParseSeatKey(s.Seat)
		if err != nil {
			return writeError(c, &service.ValidationError{Field: "seats", Message: err.Error()})
		}
		in.Assignments = append(in.Assignments, service.SeatAssignment{ScreeningID: s.ScreeningID, Seat: k})
	}
	res, err := h.Reservations.Confirm(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order_token":  res.Payment.OrderToken,
		"duplicate":    res.Duplicate,
		"amount_cents": res.Payment.AmountCents,
		"ticket_count": res.Payment.TicketCount,
		"tickets":      newTicketResponses(res.Tickets),
	})
}
