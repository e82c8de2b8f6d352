package routing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/domain/pincode"
	"github.com/stellaephile/whats-up-doc/internal/domain/triage"
	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
	"github.com/stellaephile/whats-up-doc/pkg/geo"
)

type severityRequest struct {
	Pincode       string   `json:"pincode"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	SeverityLevel string   `json:"severityLevel"`
	Specialties   []string `json:"specialties"`
}

type severityConfig struct {
	Level         string  `json:"level"`
	InitialRadius float64 `json:"initialRadius"`
}

type severityResponse struct {
	Facilities        []*facility.Facility `json:"facilities"`
	RadiusUsed        float64              `json:"radiusUsed"`
	WasExpanded       bool                 `json:"wasExpanded"`
	SpecialtyFiltered bool                 `json:"specialtyFiltered"`
	SeverityLevel     string               `json:"severityLevel"`
	Config            severityConfig       `json:"config"`
	Message           string               `json:"message,omitempty"`
}

type Handler struct {
	svc  *Service
	bbox geo.BoundingBox
}

func NewHandler(svc *Service, bbox geo.BoundingBox) *Handler {
	return &Handler{svc: svc, bbox: bbox}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/hospitals/severity-based", h.SeverityBased)
}

// SeverityBased is the primary routing endpoint. The government-first
// ordering for mild and moderate severities is applied here, after the
// router, so the router itself stays purely distance-ordered.
func (h *Handler) SeverityBased(c echo.Context) error {
	var req severityRequest
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return httperr.Invalid("malformed request body: " + err.Error())
	}

	if req.Latitude == nil || req.Longitude == nil {
		return httperr.Invalid("latitude and longitude are required")
	}
	lat, lng := *req.Latitude, *req.Longitude
	if !geo.ValidCoordinate(lat, lng) {
		return httperr.Invalid("latitude and longitude must be finite coordinates")
	}
	if !h.bbox.Contains(lat, lng) {
		return httperr.Invalid("coordinates are outside the serviceable region")
	}
	if !triage.ValidLevel(req.SeverityLevel) {
		return httperr.Invalid("severityLevel must be one of mild, moderate, high, emergency")
	}
	if req.Pincode != "" && !pincode.ValidCode(req.Pincode) {
		return httperr.Invalid("pincode must be a six digit code")
	}

	var specialty string
	if len(req.Specialties) > 0 {
		specialty = strings.TrimSpace(req.Specialties[0])
	}

	result, err := h.svc.Route(c.Request().Context(), Query{
		Lat:       lat,
		Lng:       lng,
		Level:     req.SeverityLevel,
		Specialty: specialty,
		Pincode:   req.Pincode,
	})
	if err != nil {
		return err
	}

	items := result.Facilities
	if biasForLevel(req.SeverityLevel) {
		items = governmentFirst(items)
	}

	cfg := levelConfigs[req.SeverityLevel]
	resp := severityResponse{
		Facilities:        items,
		RadiusUsed:        result.RadiusUsedKm,
		WasExpanded:       result.WasExpanded,
		SpecialtyFiltered: result.SpecialtyFiltered,
		SeverityLevel:     req.SeverityLevel,
		Config: severityConfig{
			Level:         cfg.display,
			InitialRadius: cfg.initialRadiusKm,
		},
	}
	if len(items) == 0 {
		resp.Message = fmt.Sprintf(
			"No facilities found within %.0f km. If this is an emergency, call 108 or go to the nearest hospital.",
			result.RadiusUsedKm)
	}
	return c.JSON(http.StatusOK, resp)
}
