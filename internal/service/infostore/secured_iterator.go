package infostore

import (
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
)

// ownerFunc returns the user id that owns the document a record belongs to.
type ownerFunc func(doc *models.DocumentMetadata) int64

// headOwner reads the owner from records projected under HeadWins, where
// created_by is the document's creator.
func headOwner(doc *models.DocumentMetadata) int64 { return doc.CreatedBy }

// fixedOwner is used for version records, whose created_by names the
// uploader of that version.
func fixedOwner(userID int64) ownerFunc {
	return func(*models.DocumentMetadata) int64 { return userID }
}

// securedIterator blanks the descriptive fields of records the caller may
// only see, not read.
type securedIterator struct {
	inner  repo.DocumentIterator
	caller models.Caller
	level  models.PermissionLevel
	owner  ownerFunc
}

func newSecuredIterator(inner repo.DocumentIterator, caller models.Caller, level models.PermissionLevel, owner ownerFunc) *securedIterator {
	return &securedIterator{inner: inner, caller: caller, level: level, owner: owner}
}

func (it *securedIterator) HasNext() (bool, error) { return it.inner.HasNext() }

func (it *securedIterator) Next() (*models.DocumentMetadata, error) {
	doc, err := it.inner.Next()
	if err != nil {
		return nil, err
	}
	redact(doc, it.level, it.caller, it.owner(doc))
	return doc, nil
}

func (it *securedIterator) Close() error { return it.inner.Close() }

// redact clears title, description, URL, filename and the blob pointer
// unless level lets caller read a document owned by ownerID.
func redact(doc *models.DocumentMetadata, level models.PermissionLevel, caller models.Caller, ownerID int64) {
	if level.CanRead(caller, ownerID) {
		return
	}
	doc.Title = ""
	doc.Description = ""
	doc.URL = ""
	doc.Filename = ""
	doc.FilestoreLocation = ""
}
