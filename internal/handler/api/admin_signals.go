package api

import (
	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"
	xlogger "SignalDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AdminSignalsHandler is the operator console API.
type AdminSignalsHandler struct {
	svc *usecase.AdminSignalService
	rl  *ratelimit.Limiter
	l   *xlogger.Logger
}

func NewAdminSignalsHandler(svc *usecase.AdminSignalService, rl *ratelimit.Limiter, l *xlogger.Logger) *AdminSignalsHandler {
	if l == nil {
		l = xlogger.Nop()
	}
	return &AdminSignalsHandler{svc: svc, rl: rl, l: l.Component("admin_api")}
}

func (h *AdminSignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/admin-signals")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.DELETE("/:id", h.Delete)
}

func (h *AdminSignalsHandler) List(c echo.Context) error {
	req := &models.ListAdminSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	list, err := h.svc.List(c.Request().Context(), models.AdminSignalFilter{
		Status: models.AdminStatus(req.Status),
		Pair:   req.Pair,
		Limit:  req.Limit,
	})
	if err != nil {
		h.l.Error("list admin signals", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *AdminSignalsHandler) Create(c echo.Context) error {
	if !allow(h.rl, c, "admin") {
		return tooManyRequests(c)
	}
	req := &models.CreateAdminSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, err := h.svc.Create(c.Request().Context(), req.Pair, req.Direction, req.ScheduledTime, req.Timeframe)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, a)
}

func (h *AdminSignalsHandler) Delete(c echo.Context) error {
	req := &models.SignalIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.svc.Delete(c.Request().Context(), req.ID); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}
