package api

import (
	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"

	"github.com/labstack/echo/v4"
)

type systemStatus struct {
	Enabled bool `json:"enabled"`
}

// SystemHandler exposes the global enable switch.
type SystemHandler struct {
	settings *usecase.SystemSettings
}

func NewSystemHandler(settings *usecase.SystemSettings) *SystemHandler {
	return &SystemHandler{settings: settings}
}

func (h *SystemHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/system", h.Get)
	e.PUT("/api/system", h.Set)
}

func (h *SystemHandler) Get(c echo.Context) error {
	return xhttp.SuccessResponse(c, systemStatus{Enabled: h.settings.IsSystemEnabled(c.Request().Context())})
}

func (h *SystemHandler) Set(c echo.Context) error {
	req := &models.SetSystemRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.settings.SetEnabled(c.Request().Context(), *req.Enabled); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, systemStatus{Enabled: *req.Enabled})
}
