package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unklstewy/ads-proximity/pkg/config"
)

// ReconnectWithRetry connects with exponential backoff, capped at 60s.
// maxRetries of 0 retries until ctx is done.
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		logger.Debug("database connection attempt", slog.Int("attempt", attempt), slog.String("driver", driverName(cfg)))

		db, err := Connect(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				logger.Info("database reconnected", slog.Int("attempts", attempt))
			}
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, fmt.Errorf("database unavailable after %d attempts: %w", attempt, err)
		}

		logger.Warn("database connection failed",
			slog.Any("error", err),
			slog.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// HealthCheck pings the database and runs a trivial query.
func HealthCheck(ctx context.Context, db *DB) error {
	if db == nil {
		return fmt.Errorf("database not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health check result %d", result)
	}
	return nil
}
