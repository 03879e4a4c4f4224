package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"infostore/internal/config"
	"infostore/internal/repository/postgres"
)

// runtime is what every command shares: validated config, logger and pool.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	tables  *postgres.TableNames
	logFile *os.File
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &runtime{cfg: cfg, tables: postgres.NewTableNames(cfg.TablePrefix)}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	var out io.Writer = os.Stdout
	if cfg.LogDir != "" {
		f, err := config.OpenLogFile(cfg.LogDir, 10)
		if err != nil {
			return nil, err
		}
		rt.logFile = f
		out = io.MultiWriter(os.Stdout, f)
	}
	rt.logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(rt.logger) // Set as default logger

	rt.pool, err = postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	stat := rt.pool.Stat()
	rt.logger.Info("database connected",
		"max_conns", stat.MaxConns(),
		"table_prefix", cfg.TablePrefix,
	)
	return rt, nil
}

func (rt *runtime) repoConfig() *postgres.RepositoryConfig {
	return &postgres.RepositoryConfig{
		Pool:      rt.pool,
		Tables:    rt.tables,
		TxManager: postgres.NewTransactionManager(rt.pool, rt.logger),
		Logger:    rt.logger,
	}
}

func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.logFile != nil {
		rt.logFile.Close()
	}
}
