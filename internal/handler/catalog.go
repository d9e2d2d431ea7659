package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// CatalogHandler manages halls and movies.
type CatalogHandler struct {
	Catalog Catalog
	Purge   Purger
}

// NewCatalogHandler panics on a nil catalog.
func NewCatalogHandler(cat Catalog, purge Purger) *CatalogHandler {
	if cat == nil {
		panic("nil catalog passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: cat, Purge: purge}
}

type createHallRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Rows        uint32 `json:"rows" validate:"required,min=1,max=100"`
	SeatsPerRow uint32 `json:"seats_per_row" validate:"required,min=1,max=100"`
}

// CreateHall handles POST /v1/halls.
func (h *CatalogHandler) CreateHall(c echo.Context) error {
	var req createHallRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	hall := &model.Hall{Name: strings.TrimSpace(req.Name), Rows: req.Rows, SeatsPerRow: req.SeatsPerRow}
	if err := h.Catalog.CreateHall(c.Request().Context(), hall); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, newHallResponse(*hall))
}

// ListHalls handles GET /v1/halls.
func (h *CatalogHandler) ListHalls(c echo.Context) error {
	halls, err := h.Catalog.ListHalls(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]hallResponse, len(halls))
	for i, hl := range halls {
		out[i] = newHallResponse(hl)
	}
	return c.JSON(http.StatusOK, echo.Map{"halls": out})
}

type createMovieRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	DurationMin uint32 `json:"duration_min" validate:"required,min=1,max=600"`
	PriceCents  int64  `json:"price_cents" validate:"min=0"`
}

// CreateMovie handles POST /v1/movies.
func (h *CatalogHandler) CreateMovie(c echo.Context) error {
	var req createMovieRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	m := &model.Movie{Title: strings.TrimSpace(req.Title), DurationMin: req.DurationMin, PriceCents: req.PriceCents, IsActive: true}
	if err := h.Catalog.CreateMovie(c.Request().Context(), m); err != nil {
		return writeError(c, err)
	}
	purge(c, h.Purge)
	return c.JSON(http.StatusCreated, newMovieResponse(*m))
}

// ListMovies handles GET /v1/movies.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	movies, err := h.Catalog.ListMovies(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]movieResponse, len(movies))
	for i, m := range movies {
		out[i] = newMovieResponse(m)
	}
	return c.JSON(http.StatusOK, echo.Map{"movies": out})
}
