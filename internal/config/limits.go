package config

import "infostore/internal/domain/models/infostore"

// MaxLongText bounds TEXT columns so a single field cannot blow up a row.
const MaxLongText = 65535

// FieldByteLimits is the UTF-8 byte budget of every text field. Keep in
// sync with the VARCHAR sizes of the version table. Fields without an entry
// are not length checked.
var FieldByteLimits = map[infostore.Field]int{
	infostore.FieldTitle:             128,
	infostore.FieldURL:               256,
	infostore.FieldDescription:       MaxLongText,
	infostore.FieldCategories:        255,
	infostore.FieldFilename:          255,
	infostore.FieldFileMIMEType:      255,
	infostore.FieldFileMD5Sum:        32,
	infostore.FieldVersionComment:    MaxLongText,
	infostore.FieldFilestoreLocation: 255,
}

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFolderNameLength = 255

	// MaxPageSize caps the limit a caller may ask for when listing.
	MaxPageSize = 1000
)
