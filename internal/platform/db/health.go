package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is a point-in-time snapshot of the connection pool.
// EmptyAcquireCount is the number of acquires that had to wait for a
// free connection, the first sign of pool saturation.
type PoolStats struct {
	TotalConns        int32  `json:"total_conns"`
	IdleConns         int32  `json:"idle_conns"`
	AcquiredConns     int32  `json:"acquired_conns"`
	MaxConns          int32  `json:"max_conns"`
	AcquireCount      int64  `json:"acquire_count"`
	EmptyAcquireCount int64  `json:"empty_acquire_count"`
	AcquireDuration   string `json:"acquire_duration"`
	Healthy           bool   `json:"healthy"`
}

// GetPoolStats snapshots the pool counters.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:        stat.TotalConns(),
		IdleConns:         stat.IdleConns(),
		AcquiredConns:     stat.AcquiredConns(),
		MaxConns:          stat.MaxConns(),
		AcquireCount:      stat.AcquireCount(),
		EmptyAcquireCount: stat.EmptyAcquireCount(),
		AcquireDuration:   stat.AcquireDuration().String(),
		Healthy:           stat.TotalConns() > 0,
	}
}

// HealthHandler returns the liveness endpoint handler. It pings the
// database and reports connectivity and pool counters alongside a UTC
// timestamp so load balancers can pull an instance whose store went
// away.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		timestamp := time.Now().UTC().Format(time.RFC3339)

		// Ping before snapshotting so a reachable database always shows
		// at least one live connection.
		err := pool.Ping(ctx)
		stats := GetPoolStats(pool)

		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":    "unhealthy",
				"database":  "unreachable",
				"timestamp": timestamp,
				"pool":      stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"database":  "connected",
			"timestamp": timestamp,
			"pool":      stats,
		})
	}
}
