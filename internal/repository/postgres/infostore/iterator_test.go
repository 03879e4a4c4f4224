package infostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	"infostore/internal/domain/repositories"
	repo "infostore/internal/domain/repositories/infostore"
)

// fakeRows serves canned rows. failAt > 0 makes Next fail after that many rows.
type fakeRows struct {
	data   [][]any
	pos    int
	failAt int
	err    error
	closed int
}

func (r *fakeRows) Close()                                       { r.closed++ }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.failAt > 0 && r.pos == r.failAt {
		r.err = errors.New("connection reset by peer")
		return false
	}
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		if err := d.(sql.Scanner).Scan(row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

// fakeConn answers every Query with rows.
type fakeConn struct {
	rows     *fakeRows
	queryErr error
	queries  []string
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	c.queries = append(c.queries, sql)
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return c.rows, nil
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

// fakeSource counts acquisitions and releases.
type fakeSource struct {
	conn     *fakeConn
	err      error
	acquired int
	released int
}

func (s *fakeSource) Conn(ctx context.Context) (repositories.DBTX, func(), error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	s.acquired++
	return s.conn, func() { s.released++ }, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIterator(t *testing.T, source *fakeSource) *documentIterator {
	t.Helper()
	q := repo.Query{
		ContextID: 1,
		Fields:    []models.Field{models.FieldID, models.FieldTitle, models.FieldVersion, models.FieldCurrentVersion},
	}
	it, err := newDocumentIterator(context.Background(), source, Statement{SQL: "SELECT 1"}, q, discardLogger())
	require.NoError(t, err)
	return it
}

func TestDocumentIterator_StreamsRowsLazily(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{int64(1), "alpha", int64(1), true},
		{int64(2), "beta", int64(3), false},
	}}
	source := &fakeSource{conn: &fakeConn{rows: rows}}
	it := newTestIterator(t, source)

	assert.Zero(t, source.acquired, "query must not run before the first call")

	var got []*models.DocumentMetadata
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		doc, err := it.Next()
		require.NoError(t, err)
		got = append(got, doc)
	}

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "alpha", got[0].Title)
	assert.True(t, got[0].IsCurrentVersion)
	assert.Equal(t, int64(1), got[0].ContextID)
	assert.Equal(t, 3, got[1].Version)
	assert.False(t, got[1].IsCurrentVersion)

	assert.Equal(t, 1, source.acquired)
	assert.Equal(t, 1, source.released, "exhaustion releases the connection")
	assert.Equal(t, 1, rows.closed)
}

func TestDocumentIterator_HasNextIsIdempotent(t *testing.T) {
	rows := &fakeRows{data: [][]any{{int64(1), "alpha", int64(1), true}}}
	it := newTestIterator(t, &fakeSource{conn: &fakeConn{rows: rows}})

	for i := 0; i < 3; i++ {
		ok, err := it.HasNext()
		require.NoError(t, err)
		assert.True(t, ok)
	}
	doc, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc.Title)
}

func TestDocumentIterator_NextAfterExhaustion(t *testing.T) {
	it := newTestIterator(t, &fakeSource{conn: &fakeConn{rows: &fakeRows{}}})

	_, err := it.Next()
	assert.ErrorIs(t, err, repo.ErrIteratorExhausted)
	_, err = it.Next()
	assert.ErrorIs(t, err, repo.ErrIteratorExhausted)
}

func TestDocumentIterator_CloseIsIdempotent(t *testing.T) {
	rows := &fakeRows{data: [][]any{{int64(1), "alpha", int64(1), true}, {int64(2), "beta", int64(1), true}}}
	source := &fakeSource{conn: &fakeConn{rows: rows}}
	it := newTestIterator(t, source)

	_, err := it.Next()
	require.NoError(t, err)

	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	assert.Equal(t, 1, source.released)
	assert.Equal(t, 1, rows.closed)

	ok, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentIterator_CloseBeforeOpenNeverQueries(t *testing.T) {
	conn := &fakeConn{rows: &fakeRows{}}
	source := &fakeSource{conn: conn}
	it := newTestIterator(t, source)

	require.NoError(t, it.Close())
	ok, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, conn.queries)
	assert.Zero(t, source.acquired)
}

func TestDocumentIterator_FetchFailureIsTryAgain(t *testing.T) {
	rows := &fakeRows{
		data:   [][]any{{int64(1), "alpha", int64(1), true}, {int64(2), "beta", int64(1), true}},
		failAt: 1,
	}
	source := &fakeSource{conn: &fakeConn{rows: rows}}
	it := newTestIterator(t, source)

	_, err := it.Next()
	require.NoError(t, err)

	_, err = it.Next()
	assert.ErrorIs(t, err, domain.ErrTryAgain)
	assert.Equal(t, 1, source.released, "a failed fetch closes the cursor")

	ok, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentIterator_OpenFailures(t *testing.T) {
	t.Run("no connection", func(t *testing.T) {
		it := newTestIterator(t, &fakeSource{err: errors.New("pool closed")})
		_, err := it.HasNext()
		assert.ErrorIs(t, err, domain.ErrTryAgain)
	})

	t.Run("syntax error is a bug", func(t *testing.T) {
		conn := &fakeConn{queryErr: &pgconn.PgError{Code: "42601", Message: "syntax error"}}
		source := &fakeSource{conn: conn}
		it := newTestIterator(t, source)

		_, err := it.HasNext()
		assert.ErrorIs(t, err, domain.ErrCodeError)
		assert.Equal(t, 1, source.released)
	})
}
