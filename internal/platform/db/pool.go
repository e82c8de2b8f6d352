package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPoolSaturated is returned by AcquireWithin when no connection became
// free inside the caller's wait budget while the request itself was still
// live. Callers map it to a 503 rather than a timeout.
var ErrPoolSaturated = errors.New("connection pool saturated")

func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// AcquireWithin acquires a connection from the pool, waiting at most wait.
// When the wait bound expires before the parent context does, the pool is
// saturated and ErrPoolSaturated is returned.
func AcquireWithin(ctx context.Context, pool *pgxpool.Pool, wait time.Duration) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	conn, err := pool.Acquire(acquireCtx)
	if err != nil {
		if acquireCtx.Err() != nil && ctx.Err() == nil {
			return nil, ErrPoolSaturated
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}
