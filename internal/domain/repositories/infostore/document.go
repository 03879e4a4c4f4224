package infostore

import (
	"context"
	"errors"

	models "infostore/internal/domain/models/infostore"
)

// ErrIteratorExhausted is returned by Next once no record is left.
var ErrIteratorExhausted = errors.New("iterator exhausted")

// DocumentIterator is a lazy, forward-only, single-pass result stream.
// It is not safe for concurrent use. Close is idempotent and is called
// automatically on exhaustion or error.
type DocumentIterator interface {
	HasNext() (bool, error)
	Next() (*models.DocumentMetadata, error)
	Close() error
}

// UndoFunc re-applies the pre-image of a committed mutation.
type UndoFunc func(ctx context.Context) error

// DocumentRepository is the mutation engine plus the read entry points.
type DocumentRepository interface {
	// Search streams the records matched by q.
	Search(ctx context.Context, q Query) (DocumentIterator, error)

	// Get reads one document. version 0 means the current version.
	Get(ctx context.Context, contextID, id int64, version int, fields []models.Field) (*models.DocumentMetadata, error)

	// Create inserts the head and version 1 of a new document and assigns
	// doc.ID, doc.Version and timestamps.
	Create(ctx context.Context, doc *models.DocumentMetadata) (UndoFunc, error)

	// AddVersion appends a version built from doc's version attributes and
	// makes it current. doc.ContextID and doc.ID identify the document.
	AddVersion(ctx context.Context, doc *models.DocumentMetadata, observedLastModified int64) (UndoFunc, error)

	// Update writes the listed fields of doc to the head and to the current
	// version, guarded by observedLastModified.
	Update(ctx context.Context, doc *models.DocumentMetadata, fields []models.Field, observedLastModified int64) (UndoFunc, error)

	// Delete removes the head and all of its versions, keeping shadow copies.
	Delete(ctx context.Context, contextID, id int64, observedLastModified int64) (UndoFunc, error)

	// DeleteVersions removes historical versions on behalf of modifiedBy.
	// The current version cannot be removed this way.
	DeleteVersions(ctx context.Context, contextID, id int64, versions []int, modifiedBy, observedLastModified int64) (UndoFunc, error)

	// DeleteAllInContext purges every document, version, shadow row and
	// reservation of one context.
	DeleteAllInContext(ctx context.Context, contextID int64) error
}
