// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/handler"
	"github.com/iliyamo/cinema-scheduler/internal/middleware"
)

// Deps carries everything the routes need.
type Deps struct {
	JWTSecret     string
	WebhookSecret string

	DB           handler.Pinger
	Catalog      *handler.CatalogHandler
	Screenings   *handler.ScreeningHandler
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler

	// Cache wraps cacheable public listings; HoldLimit wraps hold creation.
	Cache     echo.MiddlewareFunc
	HoldLimit echo.MiddlewareFunc
}

func (d Deps) cache() echo.MiddlewareFunc {
	if d.Cache == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return d.Cache
}

func (d Deps) holdLimit() echo.MiddlewareFunc {
	if d.HoldLimit == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return d.HoldLimit
}

// Register installs every route on e.
func Register(e *echo.Echo, d Deps) {
	RegisterPublic(e, d)
	RegisterStaff(e, d)
	RegisterCustomer(e, d)
	RegisterPayments(e, d)
}

// RegisterPublic registers unauthenticated routes: health, listings and
// seat maps.  Seat maps are never cached.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	e.GET("/v1/movies", d.Catalog.ListMovies, d.cache())
	e.GET("/v1/halls", d.Catalog.ListHalls, d.cache())
	e.GET("/v1/halls/:id/screenings", d.Screenings.DaySchedule, d.cache())
	e.GET("/v1/screenings/:id/seats", d.Screenings.SeatMap)
}

// RegisterStaff registers STAFF routes: catalog and schedule management.
func RegisterStaff(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(middleware.RoleStaff))
	g.POST("/halls", d.Catalog.CreateHall)
	g.POST("/movies", d.Catalog.CreateMovie)
	g.POST("/screenings", d.Screenings.Schedule)
	g.POST("/screenings/:id/cancel", d.Screenings.Cancel)
	g.GET("/halls/:id/free-slots", d.Screenings.FreeSlots)
}

// RegisterCustomer registers routes for signed-in customers.  Refunds are
// open to staff as well.
func RegisterCustomer(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	customer := middleware.RequireRole(middleware.RoleCustomer)
	g.POST("/screenings/:id/holds", d.Reservations.Hold, customer, d.holdLimit())
	g.DELETE("/screenings/:id/holds", d.Reservations.ReleaseScreening, customer)
	g.DELETE("/holds", d.Reservations.ReleaseAll, customer)
	g.GET("/me/tickets", d.Reservations.MyTickets, customer)
	g.POST("/tickets/:id/refund", d.Reservations.Refund, middleware.RequireRole(middleware.RoleCustomer, middleware.RoleStaff))
}

// RegisterPayments registers the payment provider webhook.
func RegisterPayments(e *echo.Echo, d Deps) {
	e.POST("/v1/payments/confirm", d.Payments.Confirm, middleware.RequireWebhookSecret(d.WebhookSecret))
}
