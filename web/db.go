package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/devilmonastery/creatorlink/internal/config"
	"github.com/devilmonastery/creatorlink/internal/infrastructure/database/postgres"
)

// connectDatabase connects to PostgreSQL with retries (for Kubernetes startup)
func connectDatabase(cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	log.Info("initializing PostgreSQL database",
		slog.String("user", cfg.Database.Postgres.User),
		slog.String("host", cfg.Database.Postgres.Host),
		slog.String("database", cfg.Database.Postgres.Database))

	connString := cfg.Database.Postgres.ConnectionString()
	maxRetries := 10
	retryDelay := 2 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		pgConn, err := postgres.NewConnection(connString)
		if err == nil {
			log.Info("successfully connected to PostgreSQL")
			return pgConn, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			log.Warn("failed to connect to PostgreSQL",
				slog.Int("attempt", i+1),
				slog.Int("max_retries", maxRetries),
				slog.Any("error", err),
				slog.Duration("retry_delay", retryDelay))
			time.Sleep(retryDelay)
			retryDelay *= 2 // Exponential backoff
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, lastErr)
}
