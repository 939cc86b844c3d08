// Package database opens the PostgreSQL pool that backs the city gazetteer.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/varunkainth/airpollutionmap/internal/config"
)

// DSN renders the settings as a postgres:// URL. Credentials are escaped.
func DSN(c config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Open builds a pool sized from c and pings the server once. The gazetteer
// is read at startup only, so a small pool is enough.
func Open(ctx context.Context, c config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(DSN(c))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if c.MaxOpenConns > 0 {
		pc.MaxConns = int32(c.MaxOpenConns) //nolint:gosec // validated by config
	}
	if c.MaxIdleConns > 0 {
		pc.MinConns = int32(c.MaxIdleConns) //nolint:gosec // validated by config
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s/%s: %w", c.Host, c.Name, err)
	}
	return pool, nil
}
