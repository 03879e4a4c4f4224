package infostore

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"infostore/internal/config"
	models "infostore/internal/domain/models/infostore"
	svc "infostore/internal/domain/services/infostore"
)

// maxColorLabel is the highest color label a client may assign.
const maxColorLabel = 10

// validateCreateRequest validates a document creation request. Text sizes
// are checked separately by the SizeValidator.
func validateCreateRequest(req *svc.CreateDocumentRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.FolderID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.ColorLabel, validation.Min(0), validation.Max(maxColorLabel)),
		validation.Field(&req.FileSize, validation.Min(int64(0))),
	)
}

func validateUpdateRequest(req *svc.UpdateDocumentRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.LastModified, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.FolderID, validation.NilOrNotEmpty, validation.Min(int64(1))),
		validation.Field(&req.ColorLabel, validation.Min(0), validation.Max(maxColorLabel)),
	)
}

func validateAddVersionRequest(req *svc.AddVersionRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.LastModified, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.FileSize, validation.Min(int64(0))),
	)
}

func validateListRequest(req *svc.ListFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.FolderID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.Limit, validation.Min(0), validation.Max(config.MaxPageSize)),
		validation.Field(&req.Offset, validation.Min(0)),
		validation.Field(&req.Fields, validation.Each(validation.By(func(value interface{}) error {
			if f, ok := value.(models.Field); ok && !f.Valid() {
				return validation.NewError("validation_unknown_field", "unknown field")
			}
			return nil
		}))),
	)
}

// updateChanges turns the non-nil request fields into a partial record and
// the list of fields to write.
func updateChanges(req *svc.UpdateDocumentRequest, ref svc.DocumentRef, caller models.Caller) (*models.DocumentMetadata, []models.Field) {
	doc := &models.DocumentMetadata{ContextID: ref.ContextID, ID: ref.ID, ModifiedBy: caller.UserID}
	var fields []models.Field
	if req.FolderID != nil {
		doc.FolderID = *req.FolderID
		fields = append(fields, models.FieldFolderID)
	}
	if req.ColorLabel != nil {
		doc.ColorLabel = *req.ColorLabel
		fields = append(fields, models.FieldColorLabel)
	}
	text := []struct {
		value *string
		dest  *string
		field models.Field
	}{
		{req.Title, &doc.Title, models.FieldTitle},
		{req.URL, &doc.URL, models.FieldURL},
		{req.Description, &doc.Description, models.FieldDescription},
		{req.Categories, &doc.Categories, models.FieldCategories},
		{req.Filename, &doc.Filename, models.FieldFilename},
	}
	for _, t := range text {
		if t.value != nil {
			*t.dest = *t.value
			fields = append(fields, t.field)
		}
	}
	return doc, fields
}
