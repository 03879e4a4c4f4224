package infostore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	svc "infostore/internal/domain/services/infostore"
)

func TestDocumentService_RejectsForeignContextBeforeAnyRead(t *testing.T) {
	ctx := context.Background()
	intruder := models.Caller{ContextID: 2, UserID: 7}
	ref := svc.DocumentRef{ContextID: testContext, ID: 100}

	ops := map[string]func(svc.DocumentService) error{
		"create": func(s svc.DocumentService) error {
			_, err := s.CreateDocument(ctx, intruder, &svc.CreateDocumentRequest{ContextID: testContext, FolderID: testFolder})
			return err
		},
		"get": func(s svc.DocumentService) error {
			_, err := s.GetDocument(ctx, intruder, ref, 0)
			return err
		},
		"update": func(s svc.DocumentService) error {
			_, err := s.UpdateDocument(ctx, intruder, ref, &svc.UpdateDocumentRequest{LastModified: 5000, Title: strPtr("x")})
			return err
		},
		"add version": func(s svc.DocumentService) error {
			_, err := s.AddVersion(ctx, intruder, ref, &svc.AddVersionRequest{LastModified: 5000})
			return err
		},
		"delete": func(s svc.DocumentService) error {
			return s.DeleteDocument(ctx, intruder, ref, 5000)
		},
		"delete versions": func(s svc.DocumentService) error {
			return s.DeleteVersions(ctx, intruder, ref, []int{1}, 5000)
		},
		"list": func(s svc.DocumentService) error {
			_, err := s.ListFolder(ctx, intruder, &svc.ListFolderRequest{ContextID: testContext, FolderID: testFolder})
			return err
		},
		"list deleted": func(s svc.DocumentService) error {
			_, err := s.ListDeleted(ctx, intruder, &svc.ListFolderRequest{ContextID: testContext, FolderID: testFolder})
			return err
		},
		"list versions": func(s svc.DocumentService) error {
			_, err := s.ListVersions(ctx, intruder, ref)
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			f := newFixture(models.PermissionAdmin)
			err := op(f.service)
			assert.ErrorIs(t, err, domain.ErrForbidden)
			assert.Empty(t, f.docs.calls)
			assert.Zero(t, f.permissions.calls)
		})
	}
}

func TestDocumentService_CreateDocument(t *testing.T) {
	f := newFixture(models.PermissionWrite)

	doc, err := f.service.CreateDocument(context.Background(), owner, &svc.CreateDocumentRequest{
		ContextID: testContext,
		FolderID:  testFolder,
		Title:     "Report",
		Filename:  "report.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), doc.ID)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, owner.UserID, doc.CreatedBy)
	assert.Equal(t, []string{"report.pdf"}, f.reservations.reserved)
	assert.Equal(t, 1, f.reservations.released, "reservation is released after the write")
	assert.Equal(t, []string{"Create"}, f.docs.calls)
}

func TestDocumentService_CreateDocument_Failures(t *testing.T) {
	tests := []struct {
		name    string
		level   models.PermissionLevel
		req     svc.CreateDocumentRequest
		taken   string
		wantErr error
	}{
		{
			name:    "filename taken",
			level:   models.PermissionWrite,
			req:     svc.CreateDocumentRequest{FolderID: testFolder, Filename: "dup.txt"},
			taken:   "dup.txt",
			wantErr: domain.ErrConflict,
		},
		{
			name:    "not a document folder",
			level:   models.PermissionAdmin,
			req:     svc.CreateDocumentRequest{FolderID: mailFolder},
			wantErr: domain.ErrUserInput,
		},
		{
			name:    "read only caller",
			level:   models.PermissionReadAll,
			req:     svc.CreateDocumentRequest{FolderID: testFolder},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "missing folder id",
			level:   models.PermissionWrite,
			req:     svc.CreateDocumentRequest{},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "unknown folder",
			level:   models.PermissionWrite,
			req:     svc.CreateDocumentRequest{FolderID: 999},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.level)
			if tt.taken != "" {
				f.reservations.taken[tt.taken] = true
			}
			req := tt.req
			req.ContextID = testContext

			_, err := f.service.CreateDocument(context.Background(), owner, &req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotContains(t, f.docs.calls, "Create")
		})
	}
}

func TestDocumentService_CreateDocument_ReportsEveryOversizedField(t *testing.T) {
	f := newFixture(models.PermissionWrite)

	_, err := f.service.CreateDocument(context.Background(), owner, &svc.CreateDocumentRequest{
		ContextID:  testContext,
		FolderID:   testFolder,
		Title:      strings.Repeat("t", 129),
		URL:        strings.Repeat("u", 257),
		FileMD5Sum: strings.Repeat("0", 33),
	})

	var truncation *domain.TruncationError
	require.ErrorAs(t, err, &truncation)
	assert.ElementsMatch(t,
		[]models.Field{models.FieldTitle, models.FieldURL, models.FieldFileMD5Sum},
		truncation.Fields())
	assert.Empty(t, f.docs.calls)
	assert.Empty(t, f.reservations.reserved)
}

func TestDocumentService_GetDocument_Redaction(t *testing.T) {
	tests := []struct {
		name     string
		level    models.PermissionLevel
		caller   models.Caller
		redacted bool
	}{
		{"see folder only", models.PermissionSeeFolder, owner, true},
		{"read own as owner", models.PermissionReadOwn, owner, false},
		{"read own as stranger", models.PermissionReadOwn, stranger, true},
		{"read all", models.PermissionReadAll, stranger, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.level)
			doc, err := f.service.GetDocument(context.Background(), tt.caller, svc.DocumentRef{ContextID: testContext, ID: 100}, 0)
			require.NoError(t, err)

			if tt.redacted {
				assert.Empty(t, doc.Title)
				assert.Empty(t, doc.Description)
				assert.Empty(t, doc.URL)
				assert.Empty(t, doc.Filename)
				assert.Empty(t, doc.FilestoreLocation)
			} else {
				assert.Equal(t, "Quarterly", doc.Title)
				assert.Equal(t, "q.pdf", doc.Filename)
				assert.Equal(t, "blobs/1/100/1", doc.FilestoreLocation)
			}
			assert.Equal(t, int64(100), doc.ID, "identity is never redacted")
		})
	}
}

func TestDocumentService_GetDocument_NoAccess(t *testing.T) {
	f := newFixture(models.PermissionNone)
	_, err := f.service.GetDocument(context.Background(), owner, svc.DocumentRef{ContextID: testContext, ID: 100}, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDocumentService_UpdateDocument(t *testing.T) {
	ref := svc.DocumentRef{ContextID: testContext, ID: 100}

	t.Run("no fields", func(t *testing.T) {
		f := newFixture(models.PermissionWrite)
		_, err := f.service.UpdateDocument(context.Background(), owner, ref, &svc.UpdateDocumentRequest{LastModified: 5000})
		assert.ErrorIs(t, err, domain.ErrUserInput)
		assert.Empty(t, f.docs.calls)
	})

	t.Run("missing last modified", func(t *testing.T) {
		f := newFixture(models.PermissionWrite)
		_, err := f.service.UpdateDocument(context.Background(), owner, ref, &svc.UpdateDocumentRequest{Title: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("title only claims no filename", func(t *testing.T) {
		f := newFixture(models.PermissionWrite)
		_, err := f.service.UpdateDocument(context.Background(), owner, ref, &svc.UpdateDocumentRequest{
			LastModified: 5000,
			Title:        strPtr("Renamed"),
		})
		require.NoError(t, err)
		assert.Equal(t, []models.Field{models.FieldTitle}, f.docs.updated)
		assert.Empty(t, f.reservations.reserved)
	})

	t.Run("rename to taken filename", func(t *testing.T) {
		f := newFixture(models.PermissionWrite)
		f.reservations.taken["taken.pdf"] = true
		_, err := f.service.UpdateDocument(context.Background(), owner, ref, &svc.UpdateDocumentRequest{
			LastModified: 5000,
			Filename:     strPtr("taken.pdf"),
		})
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "filename", conflict.ResourceType)
		assert.NotContains(t, f.docs.calls, "Update")
	})

	t.Run("move claims the name in the target folder", func(t *testing.T) {
		f := newFixture(models.PermissionWrite)
		_, err := f.service.UpdateDocument(context.Background(), owner, ref, &svc.UpdateDocumentRequest{
			LastModified: 5000,
			FolderID:     int64Ptr(otherFolder),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"q.pdf"}, f.reservations.reserved)
		assert.Equal(t, 1, f.reservations.released)
	})

	t.Run("move into a non document folder", func(t *testing.T) {
		f := newFixture(models.PermissionWrite)
		_, err := f.service.UpdateDocument(context.Background(), owner, ref, &svc.UpdateDocumentRequest{
			LastModified: 5000,
			FolderID:     int64Ptr(mailFolder),
		})
		assert.ErrorIs(t, err, domain.ErrUserInput)
	})

	t.Run("stale write surfaces the engine error", func(t *testing.T) {
		f := newFixture(models.PermissionWrite)
		f.docs.err = &domain.ConcurrentModificationError{ContextID: testContext, DocumentID: 100, LastModified: 4000}
		_, err := f.service.UpdateDocument(context.Background(), owner, ref, &svc.UpdateDocumentRequest{
			LastModified: 4000,
			Title:        strPtr("late"),
		})
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	})
}

func TestDocumentService_AddVersion_ClaimsChangedFilename(t *testing.T) {
	f := newFixture(models.PermissionWrite)
	ref := svc.DocumentRef{ContextID: testContext, ID: 100}

	_, err := f.service.AddVersion(context.Background(), owner, ref, &svc.AddVersionRequest{
		LastModified: 5000,
		Filename:     "q-v2.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"q-v2.pdf"}, f.reservations.reserved)
	assert.Contains(t, f.docs.calls, "AddVersion")

	f = newFixture(models.PermissionWrite)
	_, err = f.service.AddVersion(context.Background(), owner, ref, &svc.AddVersionRequest{
		LastModified: 5000,
		Filename:     "q.pdf",
	})
	require.NoError(t, err)
	assert.Empty(t, f.reservations.reserved, "keeping the name needs no reservation")
}

func TestDocumentService_Deletes(t *testing.T) {
	ref := svc.DocumentRef{ContextID: testContext, ID: 100}

	f := newFixture(models.PermissionWrite)
	assert.ErrorIs(t, f.service.DeleteDocument(context.Background(), owner, ref, 0), domain.ErrValidation)
	require.NoError(t, f.service.DeleteDocument(context.Background(), owner, ref, 5000))
	assert.Contains(t, f.docs.calls, "Delete")

	f = newFixture(models.PermissionWrite)
	assert.ErrorIs(t, f.service.DeleteVersions(context.Background(), owner, ref, nil, 5000), domain.ErrUserInput)
	require.NoError(t, f.service.DeleteVersions(context.Background(), owner, ref, []int{1}, 5000))
	assert.Contains(t, f.docs.calls, "DeleteVersions")

	f = newFixture(models.PermissionReadAll)
	assert.ErrorIs(t, f.service.DeleteDocument(context.Background(), owner, ref, 5000), domain.ErrForbidden)
	assert.NotContains(t, f.docs.calls, "Delete")
}

func TestDocumentService_ListFolder(t *testing.T) {
	f := newFixture(models.PermissionReadOwn)
	f.docs.listing = []*models.DocumentMetadata{
		{ID: 1, CreatedBy: owner.UserID, Title: "mine"},
		{ID: 2, CreatedBy: 99, Title: "theirs"},
	}

	it, err := f.service.ListFolder(context.Background(), owner, &svc.ListFolderRequest{
		ContextID: testContext,
		FolderID:  testFolder,
		Fields:    []models.Field{models.FieldID, models.FieldTitle},
	})
	require.NoError(t, err)
	defer it.Close()

	require.Len(t, f.docs.queries, 1)
	q := f.docs.queries[0]
	assert.Equal(t, repo.HeadWins, q.Policy)
	assert.Equal(t, repo.VariantLive, q.Variant)
	assert.Equal(t, repo.FolderFilter{FolderID: testFolder}, q.Filter)
	assert.Equal(t, []models.Field{models.FieldID, models.FieldTitle, models.FieldCreatedBy}, q.Fields)

	first, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, "mine", first.Title)
	second, err := it.Next()
	require.NoError(t, err)
	assert.Empty(t, second.Title)
	_, err = it.Next()
	assert.ErrorIs(t, err, repo.ErrIteratorExhausted)
}

func TestDocumentService_ListDeletedReadsShadowTables(t *testing.T) {
	f := newFixture(models.PermissionReadAll)
	it, err := f.service.ListDeleted(context.Background(), owner, &svc.ListFolderRequest{ContextID: testContext, FolderID: testFolder})
	require.NoError(t, err)
	defer it.Close()

	require.Len(t, f.docs.queries, 1)
	assert.Equal(t, repo.VariantShadow, f.docs.queries[0].Variant)
	assert.Equal(t, models.AllFields(), f.docs.queries[0].Fields)
}

func TestDocumentService_ListFolder_Rejects(t *testing.T) {
	f := newFixture(models.PermissionReadAll)

	_, err := f.service.ListFolder(context.Background(), owner, &svc.ListFolderRequest{ContextID: testContext, FolderID: mailFolder})
	assert.ErrorIs(t, err, domain.ErrUserInput)

	_, err = f.service.ListFolder(context.Background(), owner, &svc.ListFolderRequest{ContextID: testContext, FolderID: testFolder, Limit: 5000})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDocumentService_ListVersions(t *testing.T) {
	f := newFixture(models.PermissionReadAll)
	it, err := f.service.ListVersions(context.Background(), owner, svc.DocumentRef{ContextID: testContext, ID: 100})
	require.NoError(t, err)
	defer it.Close()

	require.Len(t, f.docs.queries, 1)
	q := f.docs.queries[0]
	assert.Equal(t, repo.VersionWins, q.Policy)
	assert.Equal(t, repo.VersionFilter{DocumentID: 100}, q.Filter)
	assert.Equal(t, &repo.Sort{Field: models.FieldVersion, Ascending: true}, q.Sort)
}

// uploadedBy returns a version record of document 100 uploaded by userID.
func uploadedBy(version int, userID int64) *models.DocumentMetadata {
	return &models.DocumentMetadata{
		ContextID: testContext,
		ID:        100,
		FolderID:  testFolder,
		Version:   version,
		CreatedBy: userID,
		Title:     "Quarterly",
		Filename:  "q.pdf",
	}
}

func TestDocumentService_ListVersions_OwnershipComesFromHead(t *testing.T) {
	tests := []struct {
		name     string
		caller   models.Caller
		redacted bool
	}{
		{"owner reads versions uploaded by others", owner, false},
		{"uploader of one version is still a stranger", stranger, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(models.PermissionReadOwn)
			f.docs.listing = []*models.DocumentMetadata{
				uploadedBy(1, owner.UserID),
				uploadedBy(2, stranger.UserID),
				uploadedBy(3, stranger.UserID),
			}

			it, err := f.service.ListVersions(context.Background(), tt.caller, svc.DocumentRef{ContextID: testContext, ID: 100})
			require.NoError(t, err)
			defer it.Close()

			var seen int
			for {
				ok, err := it.HasNext()
				require.NoError(t, err)
				if !ok {
					break
				}
				doc, err := it.Next()
				require.NoError(t, err)
				seen++
				if tt.redacted {
					assert.Empty(t, doc.Title, "version %d", doc.Version)
					assert.Empty(t, doc.Filename, "version %d", doc.Version)
				} else {
					assert.Equal(t, "Quarterly", doc.Title, "version %d", doc.Version)
					assert.Equal(t, "q.pdf", doc.Filename, "version %d", doc.Version)
				}
			}
			assert.Equal(t, 3, seen)
		})
	}
}

func TestDocumentService_GetDocument_VersionOwnershipComesFromHead(t *testing.T) {
	f := newFixture(models.PermissionReadOwn)
	f.docs.versions = map[int]*models.DocumentMetadata{2: uploadedBy(2, stranger.UserID)}
	ref := svc.DocumentRef{ContextID: testContext, ID: 100}

	doc, err := f.service.GetDocument(context.Background(), stranger, ref, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.Empty(t, doc.Title)
	assert.Empty(t, doc.Filename)

	doc, err = f.service.GetDocument(context.Background(), owner, ref, 2)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly", doc.Title)
	assert.Equal(t, stranger.UserID, doc.CreatedBy, "the uploader is reported unchanged")
}
