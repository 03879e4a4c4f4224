package infostore

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	svc "infostore/internal/domain/services/infostore"
)

// sliceIterator serves fixed records.
type sliceIterator struct {
	docs   []*models.DocumentMetadata
	closed bool
}

func (it *sliceIterator) HasNext() (bool, error) { return len(it.docs) > 0, nil }

func (it *sliceIterator) Next() (*models.DocumentMetadata, error) {
	if len(it.docs) == 0 {
		return nil, repo.ErrIteratorExhausted
	}
	doc := it.docs[0]
	it.docs = it.docs[1:]
	return doc, nil
}

func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}

// fakeDocs records calls and serves one stored document. versions holds
// the records returned for explicit version reads.
type fakeDocs struct {
	stored   *models.DocumentMetadata
	versions map[int]*models.DocumentMetadata
	listing  []*models.DocumentMetadata
	calls    []string
	queries  []repo.Query
	updated  []models.Field
	err      error
}

func (f *fakeDocs) Search(ctx context.Context, q repo.Query) (repo.DocumentIterator, error) {
	f.calls = append(f.calls, "Search")
	f.queries = append(f.queries, q)
	docs := make([]*models.DocumentMetadata, 0, len(f.listing))
	for _, d := range f.listing {
		c := *d
		docs = append(docs, &c)
	}
	return &sliceIterator{docs: docs}, nil
}

func (f *fakeDocs) Get(ctx context.Context, contextID, id int64, version int, fields []models.Field) (*models.DocumentMetadata, error) {
	f.calls = append(f.calls, "Get")
	if f.stored == nil || f.stored.ContextID != contextID || f.stored.ID != id {
		return nil, &domain.NotFoundError{Message: "document not found"}
	}
	if v, ok := f.versions[version]; ok && version > 0 {
		c := *v
		return &c, nil
	}
	c := *f.stored
	return &c, nil
}

func (f *fakeDocs) Create(ctx context.Context, doc *models.DocumentMetadata) (repo.UndoFunc, error) {
	f.calls = append(f.calls, "Create")
	if f.err != nil {
		return nil, f.err
	}
	doc.ID = 100
	doc.Version = 1
	return func(context.Context) error { return nil }, nil
}

func (f *fakeDocs) AddVersion(ctx context.Context, doc *models.DocumentMetadata, observed int64) (repo.UndoFunc, error) {
	f.calls = append(f.calls, "AddVersion")
	if f.err != nil {
		return nil, f.err
	}
	doc.Version = f.stored.Version + 1
	return func(context.Context) error { return nil }, nil
}

func (f *fakeDocs) Update(ctx context.Context, doc *models.DocumentMetadata, fields []models.Field, observed int64) (repo.UndoFunc, error) {
	f.calls = append(f.calls, "Update")
	f.updated = fields
	if f.err != nil {
		return nil, f.err
	}
	return func(context.Context) error { return nil }, nil
}

func (f *fakeDocs) Delete(ctx context.Context, contextID, id int64, observed int64) (repo.UndoFunc, error) {
	f.calls = append(f.calls, "Delete")
	return func(context.Context) error { return nil }, f.err
}

func (f *fakeDocs) DeleteVersions(ctx context.Context, contextID, id int64, versions []int, modifiedBy, observed int64) (repo.UndoFunc, error) {
	f.calls = append(f.calls, "DeleteVersions")
	return func(context.Context) error { return nil }, f.err
}

func (f *fakeDocs) DeleteAllInContext(ctx context.Context, contextID int64) error {
	f.calls = append(f.calls, "DeleteAllInContext")
	return nil
}

// fakeFolders maps folder ids to folders of one context.
type fakeFolders map[int64]*models.Folder

func (f fakeFolders) GetByID(ctx context.Context, contextID, id int64) (*models.Folder, error) {
	folder, ok := f[id]
	if !ok || folder.ContextID != contextID {
		return nil, &domain.NotFoundError{Message: "folder not found"}
	}
	return folder, nil
}

// fakeReservations refuses names listed in taken.
type fakeReservations struct {
	taken    map[string]bool
	reserved []string
	released int
}

func (f *fakeReservations) Reserve(ctx context.Context, contextID, folderID int64, filename string, excludeID int64) (*models.Reservation, bool, error) {
	if f.taken[filename] {
		return nil, false, nil
	}
	f.reserved = append(f.reserved, filename)
	return &models.Reservation{ID: uuid.New(), ContextID: contextID, FolderID: folderID, Filename: filename}, true, nil
}

func (f *fakeReservations) Release(ctx context.Context, r *models.Reservation) {
	f.released++
}

func (f *fakeReservations) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// fixedPermissions grants one level everywhere.
type fixedPermissions struct {
	level models.PermissionLevel
	calls int
}

func (p *fixedPermissions) PermissionFor(ctx context.Context, contextID, folderID int64, caller models.Caller) (models.PermissionLevel, error) {
	p.calls++
	return p.level, nil
}

const (
	testContext = int64(1)
	testFolder  = int64(10)
	otherFolder = int64(11)
	mailFolder  = int64(12)
)

var (
	owner    = models.Caller{ContextID: testContext, UserID: 7}
	stranger = models.Caller{ContextID: testContext, UserID: 8}
)

type fixture struct {
	docs         *fakeDocs
	reservations *fakeReservations
	permissions  *fixedPermissions
	service      svc.DocumentService
}

func newFixture(level models.PermissionLevel) *fixture {
	folders := fakeFolders{
		testFolder:  {ContextID: testContext, ID: testFolder, Module: models.ModuleInfostore, CreatedBy: 7},
		otherFolder: {ContextID: testContext, ID: otherFolder, Module: models.ModuleInfostore, CreatedBy: 7},
		mailFolder:  {ContextID: testContext, ID: mailFolder, Module: "mail", CreatedBy: 7},
	}
	f := &fixture{
		docs: &fakeDocs{stored: &models.DocumentMetadata{
			ContextID:         testContext,
			ID:                100,
			FolderID:          testFolder,
			Version:           1,
			CreatedBy:         7,
			Title:             "Quarterly",
			Description:       "numbers",
			URL:               "https://example.com/q",
			Filename:          "q.pdf",
			FilestoreLocation: "blobs/1/100/1",
			LastModified:      time.UnixMilli(5000),
		}},
		reservations: &fakeReservations{taken: map[string]bool{}},
		permissions:  &fixedPermissions{level: level},
	}
	f.service = NewDocumentService(f.docs, folders, f.reservations, f.permissions, NewSizeValidator(nil),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }
