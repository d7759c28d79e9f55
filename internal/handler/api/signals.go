package api

import (
	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"

	"github.com/labstack/echo/v4"
)

// SignalsHandler serves the signal history held by the signal store.
type SignalsHandler struct {
	store *usecase.SignalStore
}

func NewSignalsHandler(store *usecase.SignalStore) *SignalsHandler {
	return &SignalsHandler{store: store}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/signals")
	g.GET("", h.List)
	g.GET("/current", h.Current)
	g.GET("/:id", h.Get)
}

// List returns signals newest first.
func (h *SignalsHandler) List(c echo.Context) error {
	req := &models.ListSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	all := h.store.List()
	total := len(all)
	if len(all) > req.Limit {
		all = all[:req.Limit]
	}
	return xhttp.ListResponse(c, all, int64(total))
}

func (h *SignalsHandler) Current(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.store.Current())
}

func (h *SignalsHandler) Get(c echo.Context) error {
	req := &models.SignalIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, ok := h.store.Get(req.ID)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal %s not found", req.ID))
	}
	return xhttp.SuccessResponse(c, s)
}
