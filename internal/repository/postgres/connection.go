package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"infostore/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool      *pgxpool.Pool
	Tables    *TableNames
	TxManager repositories.TransactionManager
	Logger    *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Folders             string
	Documents           string // head rows
	DocumentVersions    string
	DelDocuments        string // shadow of Documents
	DelDocumentVersions string // shadow of DocumentVersions
	Reservations        string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Folders:             fmt.Sprintf("%sinfostore_folder", prefix),
		Documents:           fmt.Sprintf("%sinfostore", prefix),
		DocumentVersions:    fmt.Sprintf("%sinfostore_document", prefix),
		DelDocuments:        fmt.Sprintf("%sdel_infostore", prefix),
		DelDocumentVersions: fmt.Sprintf("%sdel_infostore_document", prefix),
		Reservations:        fmt.Sprintf("%sinfostore_reservation", prefix),
	}
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// CreateConnectionPool creates a new pgx connection pool.
//
// Port 6543 is the usual PgBouncer transaction pooler port, which does not
// support prepared statements. When it is detected and the caller did not
// pick a mode via ?default_query_exec_mode=..., the pool switches to
// QueryExecModeCacheDescribe.
//
// Table prefixes are interpolated into the SQL text before it is sent, so
// each environment gets its own cached statements.
func CreateConnectionPool(ctx context.Context, databaseURL string, sizing PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if sizing.MaxConns > 0 {
		config.MaxConns = sizing.MaxConns
	}
	if sizing.MinConns > 0 {
		config.MinConns = sizing.MinConns
	}

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the appropriate query executor for the context.
// If a transaction is present in the context, it returns the transaction.
// Otherwise, it returns the provided pool.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}

// PoolSource implements repositories.ConnSource on top of a pool. Inside a
// transaction it hands out the transaction itself with a no-op release.
type PoolSource struct {
	Pool *pgxpool.Pool
}

// Conn acquires one dedicated connection.
func (s PoolSource) Conn(ctx context.Context) (repositories.DBTX, func(), error) {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx, func() {}, nil
	}
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, conn.Release, nil
}
