package pincode

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/pincode/:code", h.Resolve)
}

func (h *Handler) Resolve(c echo.Context) error {
	res, err := h.svc.Resolve(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
