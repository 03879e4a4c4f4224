package infostore

import (
	"fmt"
	"time"
)

// DocumentMetadata is the flattened view of a head joined with one of its
// versions. Which attributes are populated depends on the projected fields.
type DocumentMetadata struct {
	ContextID int64 `json:"-"`

	// Head attributes
	ID         int64 `json:"id"`
	FolderID   int64 `json:"folder_id"`
	Version    int   `json:"version"`
	ColorLabel int   `json:"color_label"`

	// Shared by head and version rows
	CreationDate time.Time `json:"creation_date"`
	LastModified time.Time `json:"last_modified"`
	CreatedBy    int64     `json:"created_by"`
	ModifiedBy   int64     `json:"modified_by"`

	// Version attributes
	Title             string `json:"title"`
	URL               string `json:"url,omitempty"`
	Description       string `json:"description,omitempty"`
	Categories        string `json:"categories,omitempty"`
	Filename          string `json:"filename,omitempty"`
	FileSize          int64  `json:"file_size"`
	FileMIMEType      string `json:"file_mimetype,omitempty"`
	FileMD5Sum        string `json:"file_md5sum,omitempty"`
	VersionComment    string `json:"version_comment,omitempty"`
	FilestoreLocation string `json:"filestore_location,omitempty"` // opaque pointer into the blob store

	IsCurrentVersion bool `json:"current_version"`
}

// LastModifiedMillis returns the optimistic-concurrency token of the record.
func (d *DocumentMetadata) LastModifiedMillis() int64 {
	return ToMillis(d.LastModified)
}

// Get returns the value of f in its storage representation: int64 for ids,
// sizes and timestamps (epoch millis), int for narrowed columns, string for
// text and bool for the current-version flag.
func (d *DocumentMetadata) Get(f Field) (any, error) {
	switch f {
	case FieldID:
		return d.ID, nil
	case FieldFolderID:
		return d.FolderID, nil
	case FieldVersion:
		return d.Version, nil
	case FieldColorLabel:
		return d.ColorLabel, nil
	case FieldCreationDate:
		return ToMillis(d.CreationDate), nil
	case FieldLastModified:
		return ToMillis(d.LastModified), nil
	case FieldCreatedBy:
		return d.CreatedBy, nil
	case FieldModifiedBy:
		return d.ModifiedBy, nil
	case FieldTitle:
		return d.Title, nil
	case FieldURL:
		return d.URL, nil
	case FieldDescription:
		return d.Description, nil
	case FieldCategories:
		return d.Categories, nil
	case FieldFilename:
		return d.Filename, nil
	case FieldFileSize:
		return d.FileSize, nil
	case FieldFileMIMEType:
		return d.FileMIMEType, nil
	case FieldFileMD5Sum:
		return d.FileMD5Sum, nil
	case FieldVersionComment:
		return d.VersionComment, nil
	case FieldFilestoreLocation:
		return d.FilestoreLocation, nil
	case FieldCurrentVersion:
		return d.IsCurrentVersion, nil
	}
	return nil, fmt.Errorf("get: no accessor for %s", f)
}

// Set assigns v to f. v must already be in the storage representation
// returned by Get.
func (d *DocumentMetadata) Set(f Field, v any) error {
	var ok bool
	switch f {
	case FieldID:
		d.ID, ok = v.(int64)
	case FieldFolderID:
		d.FolderID, ok = v.(int64)
	case FieldVersion:
		d.Version, ok = v.(int)
	case FieldColorLabel:
		d.ColorLabel, ok = v.(int)
	case FieldCreationDate:
		var ms int64
		ms, ok = v.(int64)
		d.CreationDate = FromMillis(ms)
	case FieldLastModified:
		var ms int64
		ms, ok = v.(int64)
		d.LastModified = FromMillis(ms)
	case FieldCreatedBy:
		d.CreatedBy, ok = v.(int64)
	case FieldModifiedBy:
		d.ModifiedBy, ok = v.(int64)
	case FieldTitle:
		d.Title, ok = v.(string)
	case FieldURL:
		d.URL, ok = v.(string)
	case FieldDescription:
		d.Description, ok = v.(string)
	case FieldCategories:
		d.Categories, ok = v.(string)
	case FieldFilename:
		d.Filename, ok = v.(string)
	case FieldFileSize:
		d.FileSize, ok = v.(int64)
	case FieldFileMIMEType:
		d.FileMIMEType, ok = v.(string)
	case FieldFileMD5Sum:
		d.FileMD5Sum, ok = v.(string)
	case FieldVersionComment:
		d.VersionComment, ok = v.(string)
	case FieldFilestoreLocation:
		d.FilestoreLocation, ok = v.(string)
	case FieldCurrentVersion:
		d.IsCurrentVersion, ok = v.(bool)
	default:
		return fmt.Errorf("set: no mutator for %s", f)
	}
	if !ok {
		return fmt.Errorf("set %s: unexpected value type %T", f, v)
	}
	return nil
}

// ToMillis converts t to epoch milliseconds; the zero time maps to 0.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time; 0 maps to the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
