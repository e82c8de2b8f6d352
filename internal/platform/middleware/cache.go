package middleware

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// CacheConfig drives the ETag middleware on directory GET endpoints.
// Facility rows change on the ingestion cadence, measured in days, so
// short client-side caching is safe.
type CacheConfig struct {
	MaxAge             int      // Cache-Control max-age, seconds
	Private            bool     // private instead of public
	NoStore            bool     // emit no-store
	VaryHeaders        []string // request headers the response varies on
	ETagEnabled        bool     // attach a weak validator
	ConditionalEnabled bool     // honor If-None-Match with 304
	ExcludePaths       []string // never decorated, e.g. "/health"
}

// DefaultCacheConfig is tuned for the facility directory: responses are
// per-caller (coordinates differ), so Cache-Control stays private, and
// the health check is never cached.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:             300,
		Private:            true,
		VaryHeaders:        []string{"Accept"},
		ETagEnabled:        true,
		ConditionalEnabled: true,
		ExcludePaths:       []string{"/health"},
	}
}

// CacheStore is a TTL'd byte cache keyed by request identity.
type CacheStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
	Clear()
}

type entry struct {
	body     []byte
	deadline time.Time
}

// InMemoryCacheStore keeps entries in a map guarded by an RWMutex.
// Expired entries are dropped on read and by the background sweeper.
type InMemoryCacheStore struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{entries: make(map[string]*entry)}
}

func (s *InMemoryCacheStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.deadline) {
		s.Delete(key)
		return nil, false
	}
	return e.body, true
}

func (s *InMemoryCacheStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{body: value, deadline: time.Now().Add(ttl)}
}

func (s *InMemoryCacheStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *InMemoryCacheStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// StartCleanup launches a sweeper goroutine that drops expired entries
// every interval until ctx is cancelled.
func (s *InMemoryCacheStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	}()
}

func (s *InMemoryCacheStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if !now.Before(e.deadline) {
			delete(s.entries, key)
		}
	}
}

// captureWriter buffers a handler's response so the middleware can
// inspect status and body before anything reaches the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func capture(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *captureWriter) Write(b []byte) (int, error) { return w.body.Write(b) }

func (w *captureWriter) WriteHeader(code int) { w.status = code }

// Flush is a no-op; nothing may reach the client before release.
func (w *captureWriter) Flush() {}

// release forwards the captured status and body to the wrapped writer.
func (w *captureWriter) release() error {
	w.ResponseWriter.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}

// ETag decorates GET and HEAD responses with a weak validator plus the
// Cache-Control and Vary headers from config. When ConditionalEnabled
// is set, a matching If-None-Match short-circuits to 304 Not Modified.
func ETag(config CacheConfig) echo.MiddlewareFunc {
	control := buildCacheControl(config)
	vary := strings.Join(config.VaryHeaders, ", ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if shouldSkip(req.URL.Path, config.ExcludePaths) {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			cw := capture(orig)
			res.Writer = cw
			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}

			// Error responses pass through undecorated.
			if cw.status >= http.StatusBadRequest {
				return cw.release()
			}

			res.Header().Set("Cache-Control", control)
			if vary != "" {
				res.Header().Set("Vary", vary)
			}
			if config.ETagEnabled {
				tag := computeETag(cw.body.Bytes())
				res.Header().Set("ETag", tag)
				if config.ConditionalEnabled {
					if match := req.Header.Get("If-None-Match"); match != "" && etagMatch(match, tag) {
						orig.WriteHeader(http.StatusNotModified)
						return nil
					}
				}
			}
			return cw.release()
		}
	}
}

// ResponseCache serves repeated GET requests from memory for the TTL,
// so identical directory queries inside the window skip the database.
// Paths in excludePaths always reach their handler; the health check
// must observe the real store.
func ResponseCache(store CacheStore, ttl time.Duration, excludePaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet || shouldSkip(req.URL.Path, excludePaths) {
				return next(c)
			}

			key := cacheKey(req.Method, req.URL.RequestURI(), req.Header.Get("Accept"))
			if body, ok := store.Get(key); ok {
				res := c.Response()
				res.Header().Set("X-Cache", "HIT")
				res.Writer.WriteHeader(http.StatusOK)
				_, err := res.Writer.Write(body)
				return err
			}

			res := c.Response()
			orig := res.Writer
			cw := capture(orig)
			res.Writer = cw
			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}

			if cw.status < http.StatusBadRequest {
				store.Set(key, cw.body.Bytes(), ttl)
			}
			res.Header().Set("X-Cache", "MISS")
			return cw.release()
		}
	}
}

// computeETag derives a weak validator from the body. Weak because the
// JSON encoder gives no byte-for-byte guarantee across releases.
func computeETag(body []byte) string {
	return fmt.Sprintf(`W/"%x"`, md5.Sum(body))
}

// cacheKey joins method, request URI and Accept header. The URI keeps
// its query string: two searches differing only in coordinates must
// not share an entry.
func cacheKey(method, uri, accept string) string {
	return method + ":" + uri + ":" + accept
}

func shouldSkip(path string, excludes []string) bool {
	return slices.Contains(excludes, path)
}

func buildCacheControl(config CacheConfig) string {
	parts := make([]string, 0, 3)
	if config.NoStore {
		parts = append(parts, "no-store")
	}
	visibility := "public"
	if config.Private {
		visibility = "private"
	}
	parts = append(parts, visibility, fmt.Sprintf("max-age=%d", config.MaxAge))
	return strings.Join(parts, ", ")
}

// etagMatch reports whether a conditional header value matches tag.
// Comparison is weak, so W/"x" and "x" name the same validator. The
// header may carry a comma-separated list or the * wildcard.
func etagMatch(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
