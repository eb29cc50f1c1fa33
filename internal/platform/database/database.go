// Package database opens the Postgres connection used by the patient
// record store and applies schema migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	connectAttempts = 10
	retryDelay      = 2 * time.Second
)

// Open connects to Postgres, retrying while the database comes up.
func Open(ctx context.Context, url string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for i := 1; i <= connectAttempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, retryDelay)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return db, nil
		}
		logger.Info("waiting for database", zap.Int("attempt", i), zap.Int("of", connectAttempts), zap.Error(err))

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	db.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, err)
}

// Migrate applies all pending migrations from source (a file:// URL) to
// the database at url. An up-to-date schema is not an error.
func Migrate(source, url string) error {
	m, err := migrate.New(source, url)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}
