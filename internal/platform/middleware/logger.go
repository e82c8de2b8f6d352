package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger emits one structured line per request. Handler errors pass
// through to the central error handler; here they only pick the level.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			rid, _ := c.Get("request_id").(string)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			evt = evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if q := req.URL.RawQuery; q != "" {
				evt = evt.Str("query", q)
			}
			evt.Msg("request")

			return err
		}
	}
}
