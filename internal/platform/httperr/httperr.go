// Package httperr defines the service error taxonomy and the JSON error
// envelope. Components return *Error values (or wrap them); the echo
// error handler renders every failure as {error, message}.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Error kinds. Each maps to exactly one HTTP status.
const (
	KindInvalidInput       = "InvalidInput"
	KindCodeNotFound       = "CodeNotFound"
	KindStoreError         = "StoreError"
	KindDeadline           = "Deadline"
	KindServiceUnavailable = "ServiceUnavailable"
)

// Error is a typed service error carrying its taxonomy kind.
type Error struct {
	Kind    string `json:"error"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Kind + ": " + e.Message + ": " + e.cause.Error()
	}
	return e.Kind + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindCodeNotFound:
		return http.StatusNotFound
	case KindDeadline:
		return http.StatusGatewayTimeout
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func CodeNotFound(msg string) *Error {
	return &Error{Kind: KindCodeNotFound, Message: msg}
}

func Store(msg string, cause error) *Error {
	return &Error{Kind: KindStoreError, Message: msg, cause: cause}
}

func Deadline(msg string) *Error {
	return &Error{Kind: KindDeadline, Message: msg}
}

func Unavailable(msg string) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg}
}

// envelope is the wire shape of every non-2xx JSON response.
type envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler returns an echo HTTPErrorHandler that maps taxonomy errors,
// echo HTTP errors, and unknown errors to the envelope. Unknown errors
// are logged and reported as StoreError to avoid leaking internals.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var env envelope
		status := http.StatusInternalServerError

		var te *Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &te):
			status = te.Status()
			env = envelope{Error: te.Kind, Message: te.Message}
		case errors.As(err, &he):
			status = he.Code
			env = envelope{Error: kindForStatus(he.Code), Message: messageOf(he)}
		default:
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
			env = envelope{Error: KindStoreError, Message: "internal error"}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Int("status", status).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, env)
	}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return KindInvalidInput
	case http.StatusNotFound:
		return KindCodeNotFound
	case http.StatusGatewayTimeout:
		return KindDeadline
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return KindServiceUnavailable
	default:
		if status < http.StatusInternalServerError {
			return KindInvalidInput
		}
		return KindStoreError
	}
}

func messageOf(he *echo.HTTPError) string {
	if s, ok := he.Message.(string); ok {
		return s
	}
	return http.StatusText(he.Code)
}
