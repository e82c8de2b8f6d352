package middleware

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")

// BodyLimit caps request bodies at a human-readable size ("64K", "1M").
// The only bodies this API accepts are small JSON documents carrying a
// symptom description or a severity query, so the cap stays tight.
func BodyLimit(limit string) echo.MiddlewareFunc {
	budget := parseLimit(limit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			// A declared Content-Length over budget is rejected before
			// reading a byte; the metered reader handles the rest.
			if req.ContentLength > budget {
				return errBodyTooLarge
			}
			req.Body = &meteredBody{ReadCloser: req.Body, left: budget}
			return next(c)
		}
	}
}

// meteredBody enforces the byte budget on a streaming body, catching
// clients that omit or understate Content-Length.
type meteredBody struct {
	io.ReadCloser
	left int64
}

func (m *meteredBody) Read(p []byte) (int, error) {
	if m.left < 0 {
		return 0, errBodyTooLarge
	}
	// Read one byte past the budget so overflow is observable.
	if windowSize := m.left + 1; int64(len(p)) > windowSize {
		p = p[:windowSize]
	}
	n, err := m.ReadCloser.Read(p)
	m.left -= int64(n)
	if m.left < 0 {
		return 0, errBodyTooLarge
	}
	return n, err
}

// parseLimit converts "64K" / "1M" / "10G" style sizes to bytes. A bare
// number is bytes; anything unparseable falls back to 1M.
func parseLimit(s string) int64 {
	const fallback int64 = 1 << 20
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var shift uint
	switch {
	case strings.HasSuffix(s, "G"):
		shift = 30
	case strings.HasSuffix(s, "M"):
		shift = 20
	case strings.HasSuffix(s, "K"):
		shift = 10
	}
	if shift > 0 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n << shift
}
