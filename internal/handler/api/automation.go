package api

import (
	"net/http"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"
	xlogger "SignalDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AutomationHandler drives the automation controller.
type AutomationHandler struct {
	ctrl *usecase.AutomationController
	rl   *ratelimit.Limiter
	l    *xlogger.Logger
}

func NewAutomationHandler(ctrl *usecase.AutomationController, rl *ratelimit.Limiter, l *xlogger.Logger) *AutomationHandler {
	if l == nil {
		l = xlogger.Nop()
	}
	return &AutomationHandler{ctrl: ctrl, rl: rl, l: l.Component("automation_api")}
}

func (h *AutomationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/automation")
	g.GET("/state", h.State)
	g.POST("/start", h.Start)
	g.POST("/stop", h.Stop)
	g.PUT("/market", h.SetMarket)
}

func (h *AutomationHandler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.ctrl.Status(c.Request().Context()))
}

func (h *AutomationHandler) Start(c echo.Context) error {
	if !allow(h.rl, c, "automation") {
		return tooManyRequests(c)
	}
	req := &models.StartAutomationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.ctrl.Start(req.Pair, req.Timeframe, req.Strategy); err != nil {
		h.l.Warn("start automation", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.ctrl.Status(c.Request().Context()))
}

func (h *AutomationHandler) Stop(c echo.Context) error {
	if !allow(h.rl, c, "automation") {
		return tooManyRequests(c)
	}
	if err := h.ctrl.Stop(); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.ctrl.Status(c.Request().Context()))
}

func (h *AutomationHandler) SetMarket(c echo.Context) error {
	if !allow(h.rl, c, "automation") {
		return tooManyRequests(c)
	}
	req := &models.SetMarketRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.ctrl.SetMarket(req.Pair, req.Timeframe, req.Strategy); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.ctrl.Status(c.Request().Context()))
}

// allow applies a per-client token bucket to write endpoints. A nil
// limiter allows everything.
func allow(rl *ratelimit.Limiter, c echo.Context, scope string) bool {
	if rl == nil {
		return true
	}
	return rl.Allow(c.RealIP() + ":" + scope)
}

func tooManyRequests(c echo.Context) error {
	return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", http.StatusTooManyRequests))
}
