package infostore

import (
	"context"

	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
)

// PermissionResolver is the security gate. It is consulted to decide which
// fields a caller may see and whether the caller may write to a folder.
type PermissionResolver interface {
	PermissionFor(ctx context.Context, contextID, folderID int64, caller models.Caller) (models.PermissionLevel, error)
}

// DocumentService orchestrates size validation, filename reservation and the
// mutation engine. Every request names its context explicitly; a context
// other than the caller's is rejected before anything touches the database.
type DocumentService interface {
	CreateDocument(ctx context.Context, caller models.Caller, req *CreateDocumentRequest) (*models.DocumentMetadata, error)

	// GetDocument reads one document; version 0 means the current version.
	GetDocument(ctx context.Context, caller models.Caller, ref DocumentRef, version int) (*models.DocumentMetadata, error)

	UpdateDocument(ctx context.Context, caller models.Caller, ref DocumentRef, req *UpdateDocumentRequest) (*models.DocumentMetadata, error)

	// AddVersion uploads a new current version.
	AddVersion(ctx context.Context, caller models.Caller, ref DocumentRef, req *AddVersionRequest) (*models.DocumentMetadata, error)

	DeleteDocument(ctx context.Context, caller models.Caller, ref DocumentRef, observedLastModified int64) error

	DeleteVersions(ctx context.Context, caller models.Caller, ref DocumentRef, versions []int, observedLastModified int64) error

	// ListFolder streams the current version of every document in a folder.
	// The caller must Close the iterator.
	ListFolder(ctx context.Context, caller models.Caller, req *ListFolderRequest) (repo.DocumentIterator, error)

	// ListVersions streams every live version of one document.
	ListVersions(ctx context.Context, caller models.Caller, ref DocumentRef) (repo.DocumentIterator, error)

	// ListDeleted streams the deleted documents of a folder.
	ListDeleted(ctx context.Context, caller models.Caller, req *ListFolderRequest) (repo.DocumentIterator, error)
}

// DocumentRef addresses one document.
type DocumentRef struct {
	ContextID int64
	ID        int64
}

// CreateDocumentRequest represents a document creation request
type CreateDocumentRequest struct {
	ContextID         int64  `json:"-"` // Set by handler from auth context, not from request body
	FolderID          int64  `json:"folder_id"`
	ColorLabel        int    `json:"color_label"`
	Title             string `json:"title"`
	URL               string `json:"url"`
	Description       string `json:"description"`
	Categories        string `json:"categories"`
	Filename          string `json:"filename"`
	FileSize          int64  `json:"file_size"`
	FileMIMEType      string `json:"file_mimetype"`
	FileMD5Sum        string `json:"file_md5sum"`
	VersionComment    string `json:"version_comment"`
	FilestoreLocation string `json:"filestore_location"`
}

// UpdateDocumentRequest carries the fields to change. Nil fields are left
// alone. LastModified is the value the caller last read.
type UpdateDocumentRequest struct {
	LastModified int64   `json:"last_modified"`
	FolderID     *int64  `json:"folder_id,omitempty"`
	ColorLabel   *int    `json:"color_label,omitempty"`
	Title        *string `json:"title,omitempty"`
	URL          *string `json:"url,omitempty"`
	Description  *string `json:"description,omitempty"`
	Categories   *string `json:"categories,omitempty"`
	Filename     *string `json:"filename,omitempty"`
}

// AddVersionRequest describes an uploaded version.
type AddVersionRequest struct {
	LastModified      int64  `json:"last_modified"`
	Title             string `json:"title"`
	URL               string `json:"url"`
	Description       string `json:"description"`
	Categories        string `json:"categories"`
	Filename          string `json:"filename"`
	FileSize          int64  `json:"file_size"`
	FileMIMEType      string `json:"file_mimetype"`
	FileMD5Sum        string `json:"file_md5sum"`
	VersionComment    string `json:"version_comment"`
	FilestoreLocation string `json:"filestore_location"`
}

// ListFolderRequest represents a folder listing request
type ListFolderRequest struct {
	ContextID int64
	FolderID  int64
	Fields    []models.Field // empty = every field
	Sort      *repo.Sort
	Limit     int
	Offset    int
}
