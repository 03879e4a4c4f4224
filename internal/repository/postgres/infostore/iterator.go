package infostore

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	"infostore/internal/domain/repositories"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/repository/postgres"
)

var _ repo.DocumentIterator = (*documentIterator)(nil)

// documentIterator streams the rows of one select over a single connection.
// The query runs on the first HasNext or Next call.
type documentIterator struct {
	ctx       context.Context
	source    repositories.ConnSource
	stmt      Statement
	contextID int64
	scanner   *rowScanner
	logger    *slog.Logger

	opened  bool
	done    bool
	rows    pgx.Rows
	release func()
	pending *models.DocumentMetadata
}

func newDocumentIterator(ctx context.Context, source repositories.ConnSource, stmt Statement, q repo.Query, logger *slog.Logger) (*documentIterator, error) {
	scanner, err := newRowScanner(q.Fields)
	if err != nil {
		return nil, err
	}
	return &documentIterator{
		ctx:       ctx,
		source:    source,
		stmt:      stmt,
		contextID: q.ContextID,
		scanner:   scanner,
		logger:    logger,
	}, nil
}

// HasNext reports whether Next will return a record. The first error ends
// the iteration for good: it is returned once, the cursor is closed, and
// later calls report exhaustion.
func (it *documentIterator) HasNext() (bool, error) {
	if it.pending != nil {
		return true, nil
	}
	if it.done {
		return false, nil
	}
	if !it.opened {
		if err := it.open(); err != nil {
			return false, it.fail(err)
		}
	}

	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return false, it.fail(classifyReadError("fetch documents", err))
		}
		it.finish()
		return false, nil
	}

	doc, err := it.scanner.scan(it.rows, it.contextID)
	if err != nil {
		return false, it.fail(err)
	}
	it.pending = doc
	return true, nil
}

// Next returns the next record, or ErrIteratorExhausted.
func (it *documentIterator) Next() (*models.DocumentMetadata, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repo.ErrIteratorExhausted
	}
	doc := it.pending
	it.pending = nil
	return doc, nil
}

// Close releases the cursor and its connection. Safe to call repeatedly.
func (it *documentIterator) Close() error {
	it.pending = nil
	it.finish()
	return nil
}

func (it *documentIterator) open() error {
	it.opened = true
	conn, release, err := it.source.Conn(it.ctx)
	if err != nil {
		return &domain.TryAgainError{Op: "open cursor", Err: err}
	}
	it.release = release

	rows, err := conn.Query(it.ctx, it.stmt.SQL, it.stmt.Args...)
	if err != nil {
		return classifyReadError("query documents", err)
	}
	it.rows = rows
	return nil
}

func (it *documentIterator) fail(err error) error {
	it.logger.Warn("document iteration aborted",
		"context_id", it.contextID,
		"error", err,
	)
	it.pending = nil
	it.finish()
	return err
}

// finish closes rows and returns the connection exactly once.
func (it *documentIterator) finish() {
	it.done = true
	it.opened = true
	if it.rows != nil {
		it.rows.Close()
		it.rows = nil
	}
	if it.release != nil {
		it.release()
		it.release = nil
	}
}

// classifyReadError maps a read failure: malformed SQL is a bug, anything
// else is worth retrying.
func classifyReadError(op string, err error) error {
	if postgres.IsPgSyntaxError(err) {
		return &domain.CodeError{Message: op, Err: err}
	}
	return &domain.TryAgainError{Op: op, Err: err}
}
