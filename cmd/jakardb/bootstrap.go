package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Jakar510/jakardb/internal/config"
	"github.com/Jakar510/jakardb/internal/core"
	"github.com/Jakar510/jakardb/internal/logging"
	"github.com/Jakar510/jakardb/internal/records"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// loadConfig loads the dotenv file, reads configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	// Overload lets the file win over variables already set in the shell.
	if err := godotenv.Overload(envFile); err != nil {
		slog.Debug("no .env file loaded, using environment variables", "file", envFile)
	} else {
		slog.Debug("loaded .env file", "file", envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())
	return cfg, nil
}

// openPool connects to the database and verifies the connection.
func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// newService registers the record tables and opens a service over pool.
func newService(pool *pgxpool.Pool, cfg *config.Config) (*core.Service, error) {
	records.Register()

	defs := core.All()
	service, err := core.NewService(pool, cfg.Cache, defs)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	slog.Info("tables registered",
		"count", len(defs),
		"tables", tableKeys(service.Tables()),
	)
	return service, nil
}
