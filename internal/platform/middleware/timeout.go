package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
)

// RequestTimeout puts a deadline on every request. When it expires
// before the handler finishes, the request context is cancelled and the
// caller gets a 504 in the standard error envelope. Handlers that fan
// out to slower backends (geocoding, model calls) derive their own
// tighter deadlines from the request context.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			// The handler runs on its own goroutine so the middleware
			// can keep watching the deadline.
			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return gatewayTimeout(c)
				}
				// Cancelled for another reason, usually a client
				// disconnect.
				return ctx.Err()
			}
		}
	}
}

func gatewayTimeout(c echo.Context) error {
	// A committed partial response cannot be replaced.
	if c.Response().Committed {
		return nil
	}
	return c.JSON(http.StatusGatewayTimeout, map[string]string{
		"error":   httperr.KindDeadline,
		"message": "request processing exceeded the allowed time limit",
	})
}
