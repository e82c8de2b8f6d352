package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery converts handler panics into 500 responses. The stack is
// logged, never returned to the caller.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
