package infostore

import (
	"context"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	svc "infostore/internal/domain/services/infostore"
)

// documentService implements the DocumentService interface
type documentService struct {
	docs         repo.DocumentRepository
	folders      repo.FolderReader
	reservations repo.ReservationRepository
	permissions  svc.PermissionResolver
	sizes        *SizeValidator
	logger       *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	docs repo.DocumentRepository,
	folders repo.FolderReader,
	reservations repo.ReservationRepository,
	permissions svc.PermissionResolver,
	sizes *SizeValidator,
	logger *slog.Logger,
) svc.DocumentService {
	return &documentService{
		docs:         docs,
		folders:      folders,
		reservations: reservations,
		permissions:  permissions,
		sizes:        sizes,
		logger:       logger,
	}
}

// ownershipFields are read before a write to authorize it and to find the
// name being claimed.
var ownershipFields = []models.Field{models.FieldFolderID, models.FieldFilename, models.FieldCreatedBy}

// CreateDocument validates the request, claims the filename, and creates the
// document with version 1.
func (s *documentService) CreateDocument(ctx context.Context, caller models.Caller, req *svc.CreateDocumentRequest) (*models.DocumentMetadata, error) {
	if err := checkContext(caller, req.ContextID); err != nil {
		return nil, err
	}
	if err := validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	doc := &models.DocumentMetadata{
		ContextID:         req.ContextID,
		FolderID:          req.FolderID,
		ColorLabel:        req.ColorLabel,
		CreatedBy:         caller.UserID,
		ModifiedBy:        caller.UserID,
		Title:             req.Title,
		URL:               req.URL,
		Description:       req.Description,
		Categories:        req.Categories,
		Filename:          req.Filename,
		FileSize:          req.FileSize,
		FileMIMEType:      req.FileMIMEType,
		FileMD5Sum:        req.FileMD5Sum,
		VersionComment:    req.VersionComment,
		FilestoreLocation: req.FilestoreLocation,
	}
	if err := s.sizes.ValidateAll(doc); err != nil {
		return nil, err
	}
	if err := s.requireWritableFolder(ctx, caller, req.ContextID, req.FolderID); err != nil {
		return nil, err
	}

	res, err := s.claimFilename(ctx, req.ContextID, req.FolderID, req.Filename, 0)
	if err != nil {
		return nil, err
	}
	defer s.reservations.Release(context.WithoutCancel(ctx), res)

	if _, err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		"context_id", doc.ContextID,
		"document_id", doc.ID,
		"folder_id", doc.FolderID,
	)
	return doc, nil
}

// GetDocument reads one document, hiding descriptive fields the caller may
// not read.
func (s *documentService) GetDocument(ctx context.Context, caller models.Caller, ref svc.DocumentRef, version int) (*models.DocumentMetadata, error) {
	if err := checkContext(caller, ref.ContextID); err != nil {
		return nil, err
	}
	if version < 0 {
		return nil, fmt.Errorf("%w: version must not be negative", domain.ErrValidation)
	}

	doc, err := s.docs.Get(ctx, ref.ContextID, ref.ID, version, nil)
	if err != nil {
		return nil, err
	}
	ownerID := doc.CreatedBy
	if version > 0 {
		// a version's created_by is its uploader; ownership lives on the head
		head, err := s.docs.Get(ctx, ref.ContextID, ref.ID, 0, ownershipFields)
		if err != nil {
			return nil, err
		}
		ownerID = head.CreatedBy
	}
	level, err := s.readableFolder(ctx, caller, ref.ContextID, doc.FolderID)
	if err != nil {
		return nil, err
	}
	redact(doc, level, caller, ownerID)
	return doc, nil
}

// UpdateDocument applies the non-nil request fields under the caller's
// observed last_modified. Renames and moves claim the resulting name in the
// target folder first.
func (s *documentService) UpdateDocument(ctx context.Context, caller models.Caller, ref svc.DocumentRef, req *svc.UpdateDocumentRequest) (*models.DocumentMetadata, error) {
	if err := checkContext(caller, ref.ContextID); err != nil {
		return nil, err
	}
	if err := validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	doc, fields := updateChanges(req, ref, caller)
	if len(fields) == 0 {
		return nil, &domain.UserInputError{Message: "no fields to update"}
	}
	if err := s.sizes.Validate(doc, fields); err != nil {
		return nil, err
	}

	current, err := s.docs.Get(ctx, ref.ContextID, ref.ID, 0, ownershipFields)
	if err != nil {
		return nil, err
	}
	if err := s.requireWritableFolder(ctx, caller, ref.ContextID, current.FolderID); err != nil {
		return nil, err
	}

	targetFolder, targetName := current.FolderID, current.Filename
	if req.FolderID != nil && *req.FolderID != current.FolderID {
		targetFolder = *req.FolderID
		if err := s.requireWritableFolder(ctx, caller, ref.ContextID, targetFolder); err != nil {
			return nil, err
		}
	}
	if req.Filename != nil {
		targetName = *req.Filename
	}
	if targetFolder != current.FolderID || targetName != current.Filename {
		res, err := s.claimFilename(ctx, ref.ContextID, targetFolder, targetName, ref.ID)
		if err != nil {
			return nil, err
		}
		defer s.reservations.Release(context.WithoutCancel(ctx), res)
	}

	if _, err := s.docs.Update(ctx, doc, fields, req.LastModified); err != nil {
		return nil, err
	}

	s.logger.Info("document updated",
		"context_id", ref.ContextID,
		"document_id", ref.ID,
		"fields", fieldNames(fields),
	)
	return s.GetDocument(ctx, caller, ref, 0)
}

// AddVersion stores a new current version of the document.
func (s *documentService) AddVersion(ctx context.Context, caller models.Caller, ref svc.DocumentRef, req *svc.AddVersionRequest) (*models.DocumentMetadata, error) {
	if err := checkContext(caller, ref.ContextID); err != nil {
		return nil, err
	}
	if err := validateAddVersionRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	doc := &models.DocumentMetadata{
		ContextID:         ref.ContextID,
		ID:                ref.ID,
		CreatedBy:         caller.UserID,
		ModifiedBy:        caller.UserID,
		Title:             req.Title,
		URL:               req.URL,
		Description:       req.Description,
		Categories:        req.Categories,
		Filename:          req.Filename,
		FileSize:          req.FileSize,
		FileMIMEType:      req.FileMIMEType,
		FileMD5Sum:        req.FileMD5Sum,
		VersionComment:    req.VersionComment,
		FilestoreLocation: req.FilestoreLocation,
	}
	if err := s.sizes.ValidateAll(doc); err != nil {
		return nil, err
	}

	current, err := s.docs.Get(ctx, ref.ContextID, ref.ID, 0, ownershipFields)
	if err != nil {
		return nil, err
	}
	if err := s.requireWritableFolder(ctx, caller, ref.ContextID, current.FolderID); err != nil {
		return nil, err
	}
	if req.Filename != current.Filename {
		res, err := s.claimFilename(ctx, ref.ContextID, current.FolderID, req.Filename, ref.ID)
		if err != nil {
			return nil, err
		}
		defer s.reservations.Release(context.WithoutCancel(ctx), res)
	}

	if _, err := s.docs.AddVersion(ctx, doc, req.LastModified); err != nil {
		return nil, err
	}

	s.logger.Info("document version added",
		"context_id", ref.ContextID,
		"document_id", ref.ID,
		"version", doc.Version,
	)
	return s.GetDocument(ctx, caller, ref, 0)
}

// DeleteDocument moves the document and its versions to the shadow tables.
func (s *documentService) DeleteDocument(ctx context.Context, caller models.Caller, ref svc.DocumentRef, observedLastModified int64) error {
	if err := s.authorizeWrite(ctx, caller, ref, observedLastModified); err != nil {
		return err
	}
	if _, err := s.docs.Delete(ctx, ref.ContextID, ref.ID, observedLastModified); err != nil {
		return err
	}
	return nil
}

// DeleteVersions removes historical versions of a document.
func (s *documentService) DeleteVersions(ctx context.Context, caller models.Caller, ref svc.DocumentRef, versions []int, observedLastModified int64) error {
	if err := s.authorizeWrite(ctx, caller, ref, observedLastModified); err != nil {
		return err
	}
	if len(versions) == 0 {
		return &domain.UserInputError{Message: "no versions to delete"}
	}
	if _, err := s.docs.DeleteVersions(ctx, ref.ContextID, ref.ID, versions, caller.UserID, observedLastModified); err != nil {
		return err
	}
	return nil
}

// ListFolder streams the live documents of a folder.
func (s *documentService) ListFolder(ctx context.Context, caller models.Caller, req *svc.ListFolderRequest) (repo.DocumentIterator, error) {
	return s.listFolder(ctx, caller, req, repo.VariantLive)
}

// ListDeleted streams the deleted documents of a folder.
func (s *documentService) ListDeleted(ctx context.Context, caller models.Caller, req *svc.ListFolderRequest) (repo.DocumentIterator, error) {
	return s.listFolder(ctx, caller, req, repo.VariantShadow)
}

func (s *documentService) listFolder(ctx context.Context, caller models.Caller, req *svc.ListFolderRequest, variant repo.Variant) (repo.DocumentIterator, error) {
	if err := checkContext(caller, req.ContextID); err != nil {
		return nil, err
	}
	if err := validateListRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if _, err := s.documentFolder(ctx, req.ContextID, req.FolderID); err != nil {
		return nil, err
	}
	level, err := s.readableFolder(ctx, caller, req.ContextID, req.FolderID)
	if err != nil {
		return nil, err
	}

	it, err := s.docs.Search(ctx, repo.Query{
		ContextID: req.ContextID,
		Fields:    withOwner(req.Fields),
		Policy:    repo.HeadWins,
		Variant:   variant,
		Filter:    repo.FolderFilter{FolderID: req.FolderID},
		Sort:      req.Sort,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, err
	}
	return newSecuredIterator(it, caller, level, headOwner), nil
}

// ListVersions streams every live version of a document, oldest first.
func (s *documentService) ListVersions(ctx context.Context, caller models.Caller, ref svc.DocumentRef) (repo.DocumentIterator, error) {
	if err := checkContext(caller, ref.ContextID); err != nil {
		return nil, err
	}
	current, err := s.docs.Get(ctx, ref.ContextID, ref.ID, 0, ownershipFields)
	if err != nil {
		return nil, err
	}
	level, err := s.readableFolder(ctx, caller, ref.ContextID, current.FolderID)
	if err != nil {
		return nil, err
	}

	it, err := s.docs.Search(ctx, repo.Query{
		ContextID: ref.ContextID,
		Fields:    models.AllFields(),
		Policy:    repo.VersionWins,
		Filter:    repo.VersionFilter{DocumentID: ref.ID},
		Sort:      &repo.Sort{Field: models.FieldVersion, Ascending: true},
	})
	if err != nil {
		return nil, err
	}
	return newSecuredIterator(it, caller, level, fixedOwner(current.CreatedBy)), nil
}

// authorizeWrite checks the context, the observed timestamp and the
// caller's right to write to the document's folder.
func (s *documentService) authorizeWrite(ctx context.Context, caller models.Caller, ref svc.DocumentRef, observed int64) error {
	if err := checkContext(caller, ref.ContextID); err != nil {
		return err
	}
	if observed <= 0 {
		return fmt.Errorf("%w: last_modified is required", domain.ErrValidation)
	}
	current, err := s.docs.Get(ctx, ref.ContextID, ref.ID, 0, ownershipFields)
	if err != nil {
		return err
	}
	return s.requireWritableFolder(ctx, caller, ref.ContextID, current.FolderID)
}

// documentFolder loads a folder and checks that it holds documents.
func (s *documentService) documentFolder(ctx context.Context, contextID, folderID int64) (*models.Folder, error) {
	folder, err := s.folders.GetByID(ctx, contextID, folderID)
	if err != nil {
		return nil, err
	}
	if !folder.IsDocumentFolder() {
		return nil, &domain.UserInputError{Message: fmt.Sprintf("folder %d is not a document folder", folderID)}
	}
	return folder, nil
}

func (s *documentService) requireWritableFolder(ctx context.Context, caller models.Caller, contextID, folderID int64) error {
	if _, err := s.documentFolder(ctx, contextID, folderID); err != nil {
		return err
	}
	level, err := s.permissions.PermissionFor(ctx, contextID, folderID, caller)
	if err != nil {
		return err
	}
	if level < models.PermissionWrite {
		return &domain.ForbiddenError{Message: fmt.Sprintf("no write permission on folder %d", folderID)}
	}
	return nil
}

func (s *documentService) readableFolder(ctx context.Context, caller models.Caller, contextID, folderID int64) (models.PermissionLevel, error) {
	level, err := s.permissions.PermissionFor(ctx, contextID, folderID, caller)
	if err != nil {
		return models.PermissionNone, err
	}
	if level == models.PermissionNone {
		return models.PermissionNone, &domain.ForbiddenError{Message: fmt.Sprintf("no access to folder %d", folderID)}
	}
	return level, nil
}

// claimFilename reserves name in folderID. A taken name is a conflict.
func (s *documentService) claimFilename(ctx context.Context, contextID, folderID int64, name string, excludeID int64) (*models.Reservation, error) {
	res, ok, err := s.reservations.Reserve(ctx, contextID, folderID, name, excludeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("filename '%s' is already in use in folder %d", name, folderID),
			ResourceType: "filename",
			ResourceID:   name,
		}
	}
	return res, nil
}

// checkContext rejects any request outside the caller's context.
func checkContext(caller models.Caller, contextID int64) error {
	if contextID <= 0 {
		return fmt.Errorf("%w: context id is required", domain.ErrValidation)
	}
	if caller.ContextID != contextID {
		return &domain.ForbiddenError{Message: fmt.Sprintf("context %d is not accessible", contextID)}
	}
	return nil
}

// withOwner makes sure the creator is projected, since redaction needs it.
// Nil means every field.
func withOwner(fields []models.Field) []models.Field {
	if len(fields) == 0 {
		return models.AllFields()
	}
	set := mapset.NewThreadUnsafeSet(fields...)
	if set.Contains(models.FieldCreatedBy) {
		return fields
	}
	out := make([]models.Field, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, models.FieldCreatedBy)
}

func fieldNames(fields []models.Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.String())
	}
	return names
}
