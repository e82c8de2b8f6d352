package facility

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/hospitals", h.ListNearby)
	e.GET("/hospitals/search", h.SearchByName)
	e.GET("/hospitals/stats", h.Stats)
}

func (h *Handler) ListNearby(c echo.Context) error {
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil {
		return httperr.Invalid("lat must be a number")
	}
	lng, err := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if err != nil {
		return httperr.Invalid("lng must be a number")
	}
	radius, err := strconv.ParseFloat(c.QueryParam("radius"), 64)
	if err != nil {
		return httperr.Invalid("radius must be a number (km)")
	}

	q := NearbyQuery{
		Lat:       lat,
		Lng:       lng,
		RadiusKm:  radius,
		Emergency: c.QueryParam("emergency") == "true",
		Ayush:     c.QueryParam("ayush") == "true",
		Specialty: c.QueryParam("specialty"),
	}

	hospitals, err := h.svc.ListNearby(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"hospitals": hospitals,
		"count":     len(hospitals),
		"radius":    radius,
	})
}

func (h *Handler) SearchByName(c echo.Context) error {
	results, err := h.svc.SearchByName(c.Request().Context(), c.QueryParam("q"), c.QueryParam("state"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"hospitals": results,
		"count":     len(results),
	})
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
