package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header carrying the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID. An incoming X-Request-ID
// header is preserved so upstream proxies can trace calls end to end;
// otherwise a fresh UUID is generated. The ID is stored on the echo context
// under "request_id" and echoed back in the response header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}

			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			return next(c)
		}
	}
}
