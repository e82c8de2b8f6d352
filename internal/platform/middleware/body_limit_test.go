package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	cases := map[string]int64{
		"64K":     64 << 10,
		"512K":    512 << 10,
		"64KB":    64 << 10,
		"1M":      1 << 20,
		"10M":     10 << 20,
		"1G":      1 << 30,
		"1024":    1024,
		"":        1 << 20,
		"invalid": 1 << 20,
	}
	for in, want := range cases {
		if got := parseLimit(in); got != want {
			t.Errorf("parseLimit(%q) = %d, want %d", in, got, want)
		}
	}
}

// postBody sends one JSON POST through BodyLimit(limit) into h.
func postBody(t *testing.T, limit string, body io.Reader, h echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/symptoms/classify", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return BodyLimit(limit)(h)(e.NewContext(req, rec))
}

func assert413(t *testing.T, err error) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", httpErr.Code)
	}
}

func TestBodyLimit_SmallBodyReadable(t *testing.T) {
	payload := `{"symptoms":"pet dard aur ulti"}`
	err := postBody(t, "64K", strings.NewReader(payload), func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		if string(b) != payload {
			t.Errorf("body mangled: %q", b)
		}
		return c.String(http.StatusOK, "ok")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBodyLimit_DeclaredLengthOverBudget(t *testing.T) {
	handlerRan := false
	err := postBody(t, "1K", bytes.NewReader(bytes.Repeat([]byte("x"), 2048)), func(c echo.Context) error {
		handlerRan = true
		return nil
	})
	assert413(t, err)
	if handlerRan {
		t.Error("handler must not run when Content-Length exceeds the cap")
	}
}

func TestBodyLimit_UndeclaredLengthCaughtMidRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/symptoms/classify",
		bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	err := BodyLimit("512")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(e.NewContext(req, rec))
	assert413(t, err)
}

func TestBodyLimit_NoBodyPassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/hospitals", nil)
	rec := httptest.NewRecorder()
	called := false

	err := BodyLimit("64K")(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})(e.NewContext(req, rec))
	if err != nil || !called {
		t.Fatalf("expected pass-through for bodiless GET, err=%v called=%v", err, called)
	}
}
