package infostore

import "fmt"

// Field identifies one document attribute independently of where it is
// stored. Every layer (catalog, query builder, validator, iterator) speaks
// in Fields.
type Field int

const (
	FieldID Field = iota
	FieldFolderID
	FieldVersion
	FieldColorLabel
	FieldCreationDate
	FieldLastModified
	FieldCreatedBy
	FieldModifiedBy
	FieldTitle
	FieldURL
	FieldDescription
	FieldCategories
	FieldFilename
	FieldFileSize
	FieldFileMIMEType
	FieldFileMD5Sum
	FieldVersionComment
	FieldFilestoreLocation
	// FieldCurrentVersion is computed: true when the row is the version the
	// head points at.
	FieldCurrentVersion

	// FieldCount must stay last.
	FieldCount
)

var fieldNames = [FieldCount]string{
	FieldID:                "id",
	FieldFolderID:          "folder_id",
	FieldVersion:           "version",
	FieldColorLabel:        "color_label",
	FieldCreationDate:      "creation_date",
	FieldLastModified:      "last_modified",
	FieldCreatedBy:         "created_by",
	FieldModifiedBy:        "modified_by",
	FieldTitle:             "title",
	FieldURL:               "url",
	FieldDescription:       "description",
	FieldCategories:        "categories",
	FieldFilename:          "filename",
	FieldFileSize:          "file_size",
	FieldFileMIMEType:      "file_mimetype",
	FieldFileMD5Sum:        "file_md5sum",
	FieldVersionComment:    "version_comment",
	FieldFilestoreLocation: "filestore_location",
	FieldCurrentVersion:    "current_version",
}

func (f Field) String() string {
	if f.Valid() {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Valid reports whether f is a declared field.
func (f Field) Valid() bool {
	return f >= 0 && f < FieldCount
}

// ParseField maps an API name back to its Field.
func ParseField(name string) (Field, error) {
	for f, n := range fieldNames {
		if n == name {
			return Field(f), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// AllFields returns every declared field in declaration order.
func AllFields() []Field {
	fields := make([]Field, 0, FieldCount)
	for f := Field(0); f < FieldCount; f++ {
		fields = append(fields, f)
	}
	return fields
}

// IsText reports whether the field holds a string value subject to a byte budget.
func (f Field) IsText() bool {
	switch f {
	case FieldTitle, FieldURL, FieldDescription, FieldCategories, FieldFilename,
		FieldFileMIMEType, FieldFileMD5Sum, FieldVersionComment, FieldFilestoreLocation:
		return true
	}
	return false
}
