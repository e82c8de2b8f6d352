package triage

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
)

type classifyRequest struct {
	Symptoms          string   `json:"symptoms"`
	ClarifyingAnswers []string `json:"clarifyingAnswers"`
	Stage1Cache       string   `json:"stage1Cache"`
	Age               string   `json:"age"`
	Duration          string   `json:"duration"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/symptoms/classify", h.Classify)
}

// Classify is total by contract: once the input passes validation, the
// response is always 200 with a complete assessment.
func (h *Handler) Classify(c echo.Context) error {
	var req classifyRequest
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return httperr.Invalid("malformed request body: " + err.Error())
	}
	if strings.TrimSpace(req.Symptoms) == "" {
		return httperr.Invalid("symptoms text is required")
	}

	assessment := h.svc.Classify(c.Request().Context(), Input{
		Symptoms:          req.Symptoms,
		ClarifyingAnswers: req.ClarifyingAnswers,
		Stage1Cache:       req.Stage1Cache,
		Age:               req.Age,
		Duration:          req.Duration,
	})
	return c.JSON(http.StatusOK, assessment)
}
