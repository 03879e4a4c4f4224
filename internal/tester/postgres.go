// Package tester provisions throwaway PostgreSQL schemas for integration
// tests. Tests are skipped unless INFOSTORE_TEST_DATABASE_URL is set.
package tester

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"infostore/internal/repository/postgres"
	"infostore/internal/repository/postgres/infostore"
)

// DatabaseURLEnv names the connection string used by integration tests.
const DatabaseURLEnv = "INFOSTORE_TEST_DATABASE_URL"

// DB is one migrated, uniquely prefixed set of tables.
type DB struct {
	Pool   *pgxpool.Pool
	Tables *postgres.TableNames
	Logger *slog.Logger
}

// NewDB connects, migrates a fresh table prefix and drops it when t ends.
func NewDB(t testing.TB) *DB {
	t.Helper()

	url := os.Getenv(DatabaseURLEnv)
	if url == "" {
		t.Skipf("%s not set", DatabaseURLEnv)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, url, postgres.PoolConfig{MaxConns: 8})
	require.NoError(t, err)

	prefix := "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + "_"
	tables := postgres.NewTableNames(prefix)
	require.NoError(t, infostore.Migrate(ctx, pool, tables))

	t.Cleanup(func() {
		if err := infostore.DropAll(context.Background(), pool, tables); err != nil {
			t.Logf("drop %s tables: %v", prefix, err)
		}
		pool.Close()
	})

	return &DB{
		Pool:   pool,
		Tables: tables,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// RepoConfig returns a repository configuration bound to the test tables.
func (db *DB) RepoConfig() *postgres.RepositoryConfig {
	return &postgres.RepositoryConfig{
		Pool:      db.Pool,
		Tables:    db.Tables,
		TxManager: postgres.NewTransactionManager(db.Pool, db.Logger),
		Logger:    db.Logger,
	}
}

// Count returns the number of rows of table belonging to contextID.
func (db *DB) Count(t testing.TB, table string, contextID int64) int {
	t.Helper()
	var n int
	err := db.Pool.QueryRow(context.Background(),
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE cid = $1", table), contextID).Scan(&n)
	require.NoError(t, err)
	return n
}
