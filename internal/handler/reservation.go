package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/middleware"
	"github.com/iliyamo/cinema-scheduler/internal/service"
)

// ReservationHandler serves customer holds, refunds and ticket listings.
type ReservationHandler struct {
	Reservations Reservations
	Catalog      Catalog
}

type holdRequest struct {
	Seats       []string `json:"seats" validate:"required,min=1,dive,required"`
	HoldMinutes int      `json:"hold_minutes" validate:"omitempty,min=1,max=30"`
	Contact     string   `json:"contact" validate:"omitempty,email,max=200"`
}

// Hold handles POST /v1/screenings/:id/holds.  Unavailable seats answer
// 409 with the seats that are taken; nothing is held then.
func (h *ReservationHandler) Hold(c echo.Context) error {
	screeningID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req holdRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	seats, err := parseSeatLabels("seats", req.Seats)
	if err != nil {
		return writeError(c, err)
	}
	contact := strings.TrimSpace(req.Contact)
	if contact == "" {
		contact = middleware.Contact(c)
	}
	out, err := h.Reservations.Reserve(c.Request().Context(), service.ReserveInput{
		ScreeningID:  screeningID,
		UserID:       middleware.UserID(c),
		Seats:        seats,
		HoldDuration: time.Duration(req.HoldMinutes) * time.Minute,
		Contact:      contact,
	})
	if err != nil {
		return writeError(c, err)
	}
	if out.Conflict != nil {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "seats_unavailable",
			"seats": seatLabels(out.Conflict.Seats),
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"screening_id": out.Hold.ScreeningID,
		"order_token":  out.Hold.OrderToken,
		"expires_at":   out.Hold.ExpiresAt,
		"tickets":      newTicketResponses(out.Hold.Tickets),
	})
}

// ReleaseScreening handles DELETE /v1/screenings/:id/holds.
func (h *ReservationHandler) ReleaseScreening(c echo.Context) error {
	screeningID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	n, err := h.Reservations.Release(c.Request().Context(), middleware.UserID(c), screeningID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

// ReleaseAll handles DELETE /v1/holds.
func (h *ReservationHandler) ReleaseAll(c echo.Context) error {
	n, err := h.Reservations.Release(c.Request().Context(), middleware.UserID(c), 0)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

// Refund handles POST /v1/tickets/:id/refund.  Staff may refund any sold
// ticket; customers only their own and only inside the refund window.
func (h *ReservationHandler) Refund(c echo.Context) error {
	ticketID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	in := service.CancelSaleInput{TicketID: ticketID, UserID: middleware.UserID(c)}
	if middleware.IsStaff(c) {
		in.UserID = 0
	}
	res, err := h.Reservations.CancelSale(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket":           newTicketResponse(res.Ticket),
		"refund_cents":     res.RefundCents,
		"already_refunded": res.AlreadyRefunded,
	})
}

// MyTickets handles GET /v1/me/tickets.
func (h *ReservationHandler) MyTickets(c echo.Context) error {
	tickets, err := h.Catalog.TicketsByUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": newTicketResponses(tickets)})
}
