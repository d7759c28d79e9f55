package http

import (
	"fmt"
	"net/http"

	xerrors "SignalDesk/pkg/errors"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
		Params:  make(map[string]interface{}),
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

func ConflictError(message string) *AppError {
	return NewAppError("ERR_CONFLICT", "", message, http.StatusConflict)
}

func UnavailableError(message string) *AppError {
	return NewAppError("ERR_UNAVAILABLE", "", message, http.StatusServiceUnavailable)
}

// FromDomain maps a coded domain error to its HTTP shape, or nil when err
// carries no code.
func FromDomain(err error) *AppError {
	code := xerrors.GetCode(err)
	if code == xerrors.ErrCodeUnknown {
		return nil
	}

	var appErr *AppError
	switch code {
	case xerrors.ErrCodeInvalidParameter, xerrors.ErrCodeMissingParameter,
		xerrors.ErrCodeInvalidPair, xerrors.ErrCodeInvalidDirection:
		appErr = BadRequestError(err.Error())
	case xerrors.ErrCodeDataNotFound:
		appErr = NotFoundError(err.Error())
	case xerrors.ErrCodeSignalAlreadyResolved, xerrors.ErrCodeSignalConflict,
		xerrors.ErrCodeAdminSignalConsumed, xerrors.ErrCodeAdminSignalExpired,
		xerrors.ErrCodeAutomationRunning, xerrors.ErrCodeAutomationNotRunning:
		appErr = ConflictError(err.Error())
	case xerrors.ErrCodeDataSourceUnavailable, xerrors.ErrCodePriceNotReady,
		xerrors.ErrCodePriceUnavailable, xerrors.ErrCodeRateLimited,
		xerrors.ErrCodeUpstreamStatus, xerrors.ErrCodeUpstreamTransport:
		appErr = UnavailableError(err.Error())
	default:
		appErr = NewAppError("ERR_INTERNAL", "", err.Error(), http.StatusInternalServerError)
	}
	return appErr.WithParam("code", int(code)).WithError(err)
}
