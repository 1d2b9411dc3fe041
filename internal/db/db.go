package db

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx connection pool from the DATABASE_URL environment
// variable and verifies connectivity before returning it. Pool sizing can be
// tuned with DB_MAX_CONNS and DB_MIN_CONNS; confirm/cancel hold row locks for
// the length of a transaction, so a bounded pool keeps lock contention
// predictable under load.
func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %w", err)
	}
	if maxConns := envInt32("DB_MAX_CONNS"); maxConns > 0 {
		config.MaxConns = maxConns
	}
	if minConns := envInt32("DB_MIN_CONNS"); minConns > 0 {
		config.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

func envInt32(name string) int32 {
	v, err := strconv.ParseInt(os.Getenv(name), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}
