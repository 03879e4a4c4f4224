package infostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	"infostore/internal/domain/repositories"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/repository/postgres"
)

var _ repo.DocumentRepository = (*PostgresDocumentRepository)(nil)

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	tx     repositories.TransactionManager
	source repositories.ConnSource
	logger *slog.Logger
	now    func() time.Time
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *postgres.RepositoryConfig) *PostgresDocumentRepository {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     config.TxManager,
		source: postgres.PoolSource{Pool: config.Pool},
		logger: logger,
		now:    time.Now,
	}
}

func (r *PostgresDocumentRepository) nowMillis() int64 {
	return models.ToMillis(r.now())
}

// Search streams the records matched by q. The query runs on first use.
func (r *PostgresDocumentRepository) Search(ctx context.Context, q repo.Query) (repo.DocumentIterator, error) {
	stmt, err := BuildSelect(r.tables, q)
	if err != nil {
		return nil, err
	}
	return newDocumentIterator(ctx, r.source, stmt, q, r.logger)
}

// Get reads one document. version 0 selects the current version through the
// head pointer; any other number reads that historical version.
func (r *PostgresDocumentRepository) Get(ctx context.Context, contextID, id int64, version int, fields []models.Field) (*models.DocumentMetadata, error) {
	if len(fields) == 0 {
		fields = models.AllFields()
	}
	q := repo.Query{ContextID: contextID, Fields: fields, Limit: 1}
	if version == 0 {
		q.Policy = repo.HeadWins
		q.Filter = repo.IDFilter{IDs: []int64{id}}
	} else {
		q.Policy = repo.VersionWins
		q.Filter = repo.VersionFilter{DocumentID: id, Versions: []int{version}}
	}

	stmt, err := BuildSelect(r.tables, q)
	if err != nil {
		return nil, err
	}
	scanner, err := newRowScanner(fields)
	if err != nil {
		return nil, err
	}

	db := postgres.GetExecutor(ctx, r.pool)
	doc, err := scanner.scan(db.QueryRow(ctx, stmt.SQL, stmt.Args...), contextID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if version == 0 {
				return nil, &domain.NotFoundError{Message: fmt.Sprintf("document %d not found", id)}
			}
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("version %d of document %d not found", version, id)}
		}
		return nil, classifyReadError("get document", err)
	}
	return doc, nil
}

// headState is the locked pre-image of a head row.
type headState struct {
	Version      int
	ModifiedBy   int64
	LastModified int64
}

// lockHead locks the head row and checks it against observed. observed <= 0
// skips the timestamp check.
func (r *PostgresDocumentRepository) lockHead(ctx context.Context, db repositories.DBTX, contextID, id, observed int64) (headState, error) {
	if contextID <= 0 {
		return headState{}, domain.NewCodeError("lock head: missing context id")
	}
	query := fmt.Sprintf(`
		SELECT version, changed_by, last_modified
		FROM %s
		WHERE cid = $1 AND id = $2
		FOR UPDATE
	`, r.tables.Documents)

	var st headState
	var version int32
	err := db.QueryRow(ctx, query, contextID, id).Scan(&version, &st.ModifiedBy, &st.LastModified)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return headState{}, &domain.NotFoundError{Message: fmt.Sprintf("document %d not found", id)}
		}
		return headState{}, classifyWriteError("lock head", err)
	}
	st.Version = int(version)
	if observed > 0 && st.LastModified > observed {
		return headState{}, &domain.ConcurrentModificationError{ContextID: contextID, DocumentID: id, LastModified: observed}
	}
	return st, nil
}

// liveVersions returns the live version numbers of a document, restricted to
// only when it is non-empty.
func (r *PostgresDocumentRepository) liveVersions(ctx context.Context, db repositories.DBTX, contextID, id int64, only []int) ([]int, error) {
	var a argList
	where, err := rowKey{ContextID: contextID, ID: id, Versions: only}.where(FamilyVersion, &a)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT version_number FROM %s WHERE %s ORDER BY version_number", r.tables.DocumentVersions, where)

	rows, err := db.Query(ctx, query, a.args...)
	if err != nil {
		return nil, classifyWriteError("list versions", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int32
		if err := rows.Scan(&v); err != nil {
			return nil, classifyWriteError("list versions", err)
		}
		versions = append(versions, int(v))
	}
	if err := rows.Err(); err != nil {
		return nil, classifyWriteError("list versions", err)
	}
	return versions, nil
}

func exec(ctx context.Context, db repositories.DBTX, op string, stmt Statement, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	tag, err := db.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, classifyWriteError(op, err)
	}
	return tag.RowsAffected(), nil
}

// Create inserts the head and version 1 in one transaction.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.DocumentMetadata) (repo.UndoFunc, error) {
	if doc.ContextID <= 0 {
		return nil, domain.NewCodeError("create document: missing context id")
	}
	now := r.nowMillis()
	doc.ID = 0
	doc.Version = 1
	if doc.CreationDate.IsZero() {
		doc.CreationDate = models.FromMillis(now)
	}
	doc.LastModified = models.FromMillis(now)
	if doc.ModifiedBy == 0 {
		doc.ModifiedBy = doc.CreatedBy
	}

	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := postgres.GetExecutor(ctx, r.pool)

		head, err := BuildInsert(r.tables, FamilyHead, repo.VariantLive, doc)
		if err != nil {
			return err
		}
		if err := db.QueryRow(ctx, head.SQL, head.Args...).Scan(&doc.ID); err != nil {
			return classifyWriteError("insert head", err)
		}

		version, err := BuildInsert(r.tables, FamilyVersion, repo.VariantLive, doc)
		_, err = exec(ctx, db, "insert version", version, err)
		return err
	})
	if err != nil {
		doc.ID = 0
		return nil, fmt.Errorf("create document: %w", err)
	}
	doc.IsCurrentVersion = true

	r.logger.Debug("document created",
		"context_id", doc.ContextID,
		"document_id", doc.ID,
		"folder_id", doc.FolderID,
	)

	contextID, id, created := doc.ContextID, doc.ID, doc.LastModifiedMillis()
	return func(ctx context.Context) error {
		return r.tx.ExecTx(ctx, func(ctx context.Context) error {
			db := postgres.GetExecutor(ctx, r.pool)
			if _, err := r.lockHead(ctx, db, contextID, id, created); err != nil {
				return undoError(err)
			}
			key := rowKey{ContextID: contextID, ID: id}
			stmt, err := BuildDelete(r.tables, FamilyVersion, repo.VariantLive, key, 0)
			if _, err := exec(ctx, db, "undo create: delete versions", stmt, err); err != nil {
				return err
			}
			stmt, err = BuildDelete(r.tables, FamilyHead, repo.VariantLive, key, created)
			n, err := exec(ctx, db, "undo create: delete head", stmt, err)
			if err != nil {
				return err
			}
			if n == 0 {
				return &domain.ConcurrentModificationError{ContextID: contextID, DocumentID: id, LastModified: created}
			}
			return nil
		})
	}, nil
}

// AddVersion appends a version carrying doc's version attributes and makes
// it current. The new number is one past every number used so far, deleted
// versions included, so shadow history never collides.
func (r *PostgresDocumentRepository) AddVersion(ctx context.Context, doc *models.DocumentMetadata, observedLastModified int64) (repo.UndoFunc, error) {
	var before headState
	var newVersion int
	var newLM int64

	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := postgres.GetExecutor(ctx, r.pool)

		var err error
		if before, err = r.lockHead(ctx, db, doc.ContextID, doc.ID, observedLastModified); err != nil {
			return err
		}

		stmt, err := BuildPointerUpdate(r.tables, doc.ContextID, doc.ID, pointerNext, doc.ModifiedBy, observedLastModified, stamp{Now: r.nowMillis()})
		if err != nil {
			return err
		}
		var version int32
		if err := db.QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(&version, &newLM); err != nil {
			if postgres.IsPgNoRowsError(err) {
				return &domain.ConcurrentModificationError{ContextID: doc.ContextID, DocumentID: doc.ID, LastModified: observedLastModified}
			}
			return classifyWriteError("advance version pointer", err)
		}
		newVersion = int(version)

		row := *doc
		row.Version = newVersion
		row.CreationDate = models.FromMillis(newLM)
		row.LastModified = models.FromMillis(newLM)
		if row.CreatedBy == 0 {
			row.CreatedBy = doc.ModifiedBy
		}
		insert, err := BuildInsert(r.tables, FamilyVersion, repo.VariantLive, &row)
		_, err = exec(ctx, db, "insert version", insert, err)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add version: %w", err)
	}

	doc.Version = newVersion
	doc.LastModified = models.FromMillis(newLM)
	doc.IsCurrentVersion = true

	contextID, id := doc.ContextID, doc.ID
	return func(ctx context.Context) error {
		return r.tx.ExecTx(ctx, func(ctx context.Context) error {
			db := postgres.GetExecutor(ctx, r.pool)
			if _, err := r.lockHead(ctx, db, contextID, id, newLM); err != nil {
				return undoError(err)
			}
			stmt, err := BuildPointerUpdate(r.tables, contextID, id, before.Version, before.ModifiedBy, newLM, stamp{Now: r.nowMillis()})
			if err != nil {
				return err
			}
			if _, err := db.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
				return classifyWriteError("undo add version: restore pointer", err)
			}
			del, err := BuildDelete(r.tables, FamilyVersion, repo.VariantLive, rowKey{ContextID: contextID, ID: id, Versions: []int{newVersion}}, 0)
			_, err = exec(ctx, db, "undo add version: delete version", del, err)
			return err
		})
	}, nil
}

// Update writes the listed fields to the head and to the current version in
// one transaction. A zero-row guarded write is a concurrent modification; a
// missing document is reported as not found.
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.DocumentMetadata, fields []models.Field, observedLastModified int64) (repo.UndoFunc, error) {
	changed := mapset.NewThreadUnsafeSet(fields...)
	if changed.Cardinality() == 0 {
		return nil, &domain.UserInputError{Message: "no fields to update"}
	}
	for _, f := range fields {
		if !updatable(f) {
			return nil, domain.NewCodeError("update: field %s is not updatable", f)
		}
	}

	var pre *models.DocumentMetadata
	var newLM int64
	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		pre, newLM, err = r.apply(ctx, doc, fields, observedLastModified)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	doc.LastModified = models.FromMillis(newLM)

	r.logger.Debug("document updated",
		"context_id", doc.ContextID,
		"document_id", doc.ID,
		"fields", len(fields),
	)

	return func(ctx context.Context) error {
		return r.tx.ExecTx(ctx, func(ctx context.Context) error {
			pre.ModifiedBy = doc.ModifiedBy
			if _, _, err := r.apply(ctx, pre, fields, newLM); err != nil {
				return undoError(err)
			}
			return nil
		})
	}, nil
}

// apply performs the guarded head and current-version writes and returns the
// pre-image of the touched fields plus the new last_modified.
func (r *PostgresDocumentRepository) apply(ctx context.Context, doc *models.DocumentMetadata, fields []models.Field, observed int64) (*models.DocumentMetadata, int64, error) {
	db := postgres.GetExecutor(ctx, r.pool)

	state, err := r.lockHead(ctx, db, doc.ContextID, doc.ID, 0)
	if err != nil {
		return nil, 0, err
	}
	pre, err := r.Get(ctx, doc.ContextID, doc.ID, state.Version, fields)
	if err != nil {
		return nil, 0, err
	}
	pre.ID = doc.ID

	head, err := BuildUpdate(r.tables, FamilyHead, rowKey{ContextID: doc.ContextID, ID: doc.ID}, doc, fields, observed, stamp{Now: r.nowMillis()})
	if err != nil {
		return nil, 0, err
	}
	var newLM int64
	if err := db.QueryRow(ctx, head.SQL, head.Args...).Scan(&newLM); err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, 0, &domain.ConcurrentModificationError{ContextID: doc.ContextID, DocumentID: doc.ID, LastModified: observed}
		}
		return nil, 0, classifyWriteError("update head", err)
	}

	// The version row carries the head's new timestamp exactly; it is only
	// guarded by the locked head above.
	version, err := BuildUpdate(r.tables, FamilyVersion,
		rowKey{ContextID: doc.ContextID, ID: doc.ID, Versions: []int{state.Version}},
		doc, fields, newLM, stamp{Now: newLM, Exact: true})
	if _, err := exec(ctx, db, "update version", version, err); err != nil {
		return nil, 0, err
	}
	return pre, newLM, nil
}

// Delete moves the head and every live version to the shadow tables.
func (r *PostgresDocumentRepository) Delete(ctx context.Context, contextID, id int64, observedLastModified int64) (repo.UndoFunc, error) {
	var versions []int
	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := postgres.GetExecutor(ctx, r.pool)
		if _, err := r.lockHead(ctx, db, contextID, id, observedLastModified); err != nil {
			return err
		}
		var err error
		if versions, err = r.liveVersions(ctx, db, contextID, id, nil); err != nil {
			return err
		}
		return r.moveDocument(ctx, db, contextID, id, versions, repo.VariantLive, repo.VariantShadow, observedLastModified)
	})
	if err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}

	r.logger.Info("document deleted",
		"context_id", contextID,
		"document_id", id,
		"versions", len(versions),
	)

	return func(ctx context.Context) error {
		return r.tx.ExecTx(ctx, func(ctx context.Context) error {
			db := postgres.GetExecutor(ctx, r.pool)
			return undoError(r.moveDocument(ctx, db, contextID, id, versions, repo.VariantShadow, repo.VariantLive, 0))
		})
	}, nil
}

// moveDocument copies the head and the given versions from one variant to
// the other, then removes them from the source. Heads are written before
// versions and removed after them.
func (r *PostgresDocumentRepository) moveDocument(ctx context.Context, db repositories.DBTX, contextID, id int64, versions []int, from, to repo.Variant, observed int64) error {
	head := rowKey{ContextID: contextID, ID: id}
	versionKey := rowKey{ContextID: contextID, ID: id, Versions: versions}

	stmt, err := BuildCopy(r.tables, FamilyHead, from, to, head)
	n, err := exec(ctx, db, "copy head", stmt, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("document %d not found", id)}
	}
	if len(versions) > 0 {
		stmt, err = BuildCopy(r.tables, FamilyVersion, from, to, versionKey)
		if _, err := exec(ctx, db, "copy versions", stmt, err); err != nil {
			return err
		}
		stmt, err = BuildDelete(r.tables, FamilyVersion, from, versionKey, 0)
		if _, err := exec(ctx, db, "delete versions", stmt, err); err != nil {
			return err
		}
	}
	stmt, err = BuildDelete(r.tables, FamilyHead, from, head, observed)
	n, err = exec(ctx, db, "delete head", stmt, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ConcurrentModificationError{ContextID: contextID, DocumentID: id, LastModified: observed}
	}
	return nil
}

// DeleteVersions moves historical versions to the shadow table and touches
// the head. Asking for the current version is a user error.
func (r *PostgresDocumentRepository) DeleteVersions(ctx context.Context, contextID, id int64, versions []int, modifiedBy, observedLastModified int64) (repo.UndoFunc, error) {
	requested := mapset.NewThreadUnsafeSet(versions...)
	if requested.Cardinality() == 0 {
		return nil, &domain.UserInputError{Message: "no versions to delete"}
	}

	var before headState
	var removed []int
	var newLM int64
	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := postgres.GetExecutor(ctx, r.pool)

		var err error
		if before, err = r.lockHead(ctx, db, contextID, id, observedLastModified); err != nil {
			return err
		}
		if requested.Contains(before.Version) {
			return &domain.UserInputError{Message: fmt.Sprintf("version %d is the current version of document %d", before.Version, id)}
		}
		if removed, err = r.liveVersions(ctx, db, contextID, id, requested.ToSlice()); err != nil {
			return err
		}
		if len(removed) == 0 {
			return &domain.NotFoundError{Message: fmt.Sprintf("no such versions of document %d", id)}
		}
		if err := r.moveVersions(ctx, db, contextID, id, removed, repo.VariantLive, repo.VariantShadow); err != nil {
			return err
		}

		touch, err := BuildPointerUpdate(r.tables, contextID, id, pointerKeep, modifiedBy, observedLastModified, stamp{Now: r.nowMillis()})
		if err != nil {
			return err
		}
		var version int32
		if err := db.QueryRow(ctx, touch.SQL, touch.Args...).Scan(&version, &newLM); err != nil {
			if postgres.IsPgNoRowsError(err) {
				return &domain.ConcurrentModificationError{ContextID: contextID, DocumentID: id, LastModified: observedLastModified}
			}
			return classifyWriteError("touch head", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete versions: %w", err)
	}

	r.logger.Info("document versions deleted",
		"context_id", contextID,
		"document_id", id,
		"versions", removed,
	)

	return func(ctx context.Context) error {
		return r.tx.ExecTx(ctx, func(ctx context.Context) error {
			db := postgres.GetExecutor(ctx, r.pool)
			if _, err := r.lockHead(ctx, db, contextID, id, newLM); err != nil {
				return undoError(err)
			}
			if err := r.moveVersions(ctx, db, contextID, id, removed, repo.VariantShadow, repo.VariantLive); err != nil {
				return undoError(err)
			}
			touch, err := BuildPointerUpdate(r.tables, contextID, id, pointerKeep, before.ModifiedBy, newLM, stamp{Now: r.nowMillis()})
			if err != nil {
				return err
			}
			if _, err := db.Exec(ctx, touch.SQL, touch.Args...); err != nil {
				return classifyWriteError("undo delete versions: touch head", err)
			}
			return nil
		})
	}, nil
}

func (r *PostgresDocumentRepository) moveVersions(ctx context.Context, db repositories.DBTX, contextID, id int64, versions []int, from, to repo.Variant) error {
	key := rowKey{ContextID: contextID, ID: id, Versions: versions}
	stmt, err := BuildCopy(r.tables, FamilyVersion, from, to, key)
	n, err := exec(ctx, db, "copy versions", stmt, err)
	if err != nil {
		return err
	}
	if int(n) != len(versions) {
		return &domain.ConcurrentModificationError{ContextID: contextID, DocumentID: id}
	}
	stmt, err = BuildDelete(r.tables, FamilyVersion, from, key, 0)
	_, err = exec(ctx, db, "delete versions", stmt, err)
	return err
}

// DeleteAllInContext purges one context. Rows of other contexts are never
// addressed because every statement is keyed on cid.
func (r *PostgresDocumentRepository) DeleteAllInContext(ctx context.Context, contextID int64) error {
	// Versions go before heads because of the foreign key.
	tables := []string{
		r.tables.DocumentVersions,
		r.tables.Documents,
		r.tables.DelDocumentVersions,
		r.tables.DelDocuments,
		r.tables.Reservations,
	}
	counts := make([]any, 0, 2*len(tables)+2)
	counts = append(counts, "context_id", contextID)

	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := postgres.GetExecutor(ctx, r.pool)
		for _, table := range tables {
			stmt, err := BuildPurgeContext(table, contextID)
			n, err := exec(ctx, db, "purge "+table, stmt, err)
			if err != nil {
				return err
			}
			counts = append(counts, table, n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete context %d: %w", contextID, err)
	}

	r.logger.Info("context purged", counts...)
	return nil
}

// classifyWriteError keeps typed domain errors and classifies driver errors.
func classifyWriteError(op string, err error) error {
	var typed domain.HTTPError
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case postgres.IsPgSyntaxError(err):
		return &domain.CodeError{Message: op, Err: err}
	case postgres.IsTransientError(err):
		return &domain.TryAgainError{Op: op, Err: err}
	case postgres.IsPgDuplicateError(err):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	case postgres.IsPgForeignKeyError(err):
		// A version row whose head is gone.
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// undoError reports a failed re-apply predicate as a concurrent modification.
// A zero-row or duplicate-key outcome both mean the pre-image no longer fits.
func undoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrCodeError), errors.Is(err, domain.ErrConcurrentModification):
		return err
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
	}
	return err
}
