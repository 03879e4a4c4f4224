package infostore

import (
	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/repository/postgres"
)

// Family is the physical record family that owns a column.
type Family int

const (
	FamilyHead Family = iota
	FamilyVersion
	// FamilyComputed columns are expressions over both families.
	FamilyComputed
)

func (f Family) String() string {
	switch f {
	case FamilyHead:
		return "head"
	case FamilyVersion:
		return "version"
	default:
		return "computed"
	}
}

// Table aliases used in every generated select.
const (
	headAlias    = "h"
	versionAlias = "v"
)

// Column is a resolved physical location of a field.
type Column struct {
	Field  models.Field
	Family Family
	Name   string // column name, or SQL expression for FamilyComputed
}

// Qualified returns the column prefixed with its table alias.
func (c Column) Qualified() string {
	switch c.Family {
	case FamilyHead:
		return headAlias + "." + c.Name
	case FamilyVersion:
		return versionAlias + "." + c.Name
	default:
		return c.Name
	}
}

// mapping is one catalog entry. An empty name means the family does not
// store the field. Column names are the same in live and shadow tables.
type mapping struct {
	head     string
	version  string
	computed string
}

// catalog is indexed by Field. Its length is tied to FieldCount, so adding a
// field without extending the table leaves a zero entry that Resolve rejects;
// TestCatalogIsTotal keeps that from shipping.
var catalog = [models.FieldCount]mapping{
	models.FieldID:                {head: "id", version: "infostore_id"},
	models.FieldFolderID:          {head: "folder_id"},
	models.FieldVersion:           {head: "version", version: "version_number"},
	models.FieldColorLabel:        {head: "color_label"},
	models.FieldCreationDate:      {head: "creating_date", version: "creating_date"},
	models.FieldLastModified:      {head: "last_modified", version: "last_modified"},
	models.FieldCreatedBy:         {head: "created_by", version: "created_by"},
	models.FieldModifiedBy:        {head: "changed_by", version: "changed_by"},
	models.FieldTitle:             {version: "title"},
	models.FieldURL:               {version: "url"},
	models.FieldDescription:       {version: "description"},
	models.FieldCategories:        {version: "categories"},
	models.FieldFilename:          {version: "filename"},
	models.FieldFileSize:          {version: "file_size"},
	models.FieldFileMIMEType:      {version: "file_mimetype"},
	models.FieldFileMD5Sum:        {version: "file_md5sum"},
	models.FieldVersionComment:    {version: "file_version_comment"},
	models.FieldFilestoreLocation: {version: "file_store_location"},
	models.FieldCurrentVersion:    {computed: "(" + headAlias + ".version = " + versionAlias + ".version_number)"},
}

// Resolve returns where f is read from under policy. Every declared field
// resolves under every policy; anything else is a CodeError.
func Resolve(f models.Field, policy repo.Policy) (Column, error) {
	if !f.Valid() {
		return Column{}, domain.NewCodeError("catalog: undeclared field %d", int(f))
	}
	m := catalog[f]
	switch {
	case m.computed != "":
		return Column{Field: f, Family: FamilyComputed, Name: m.computed}, nil
	case m.head != "" && m.version != "":
		if policy == repo.VersionWins {
			return Column{Field: f, Family: FamilyVersion, Name: m.version}, nil
		}
		return Column{Field: f, Family: FamilyHead, Name: m.head}, nil
	case m.head != "":
		return Column{Field: f, Family: FamilyHead, Name: m.head}, nil
	case m.version != "":
		return Column{Field: f, Family: FamilyVersion, Name: m.version}, nil
	}
	return Column{}, domain.NewCodeError("catalog: no mapping for field %s", f)
}

// ColumnIn returns the column that stores f in family, if any.
func ColumnIn(f models.Field, family Family) (string, bool) {
	if !f.Valid() {
		return "", false
	}
	switch family {
	case FamilyHead:
		return catalog[f].head, catalog[f].head != ""
	case FamilyVersion:
		return catalog[f].version, catalog[f].version != ""
	}
	return "", false
}

// StoredFields lists the fields physically stored in family, in field order.
func StoredFields(family Family) []models.Field {
	var fields []models.Field
	for _, f := range models.AllFields() {
		if _, ok := ColumnIn(f, family); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// TableFor returns the physical table of family in variant.
func TableFor(tables *postgres.TableNames, family Family, variant repo.Variant) string {
	if family == FamilyVersion {
		if variant == repo.VariantShadow {
			return tables.DelDocumentVersions
		}
		return tables.DocumentVersions
	}
	if variant == repo.VariantShadow {
		return tables.DelDocuments
	}
	return tables.Documents
}

// keyColumns returns the id column and, for versions, the version column.
func keyColumns(family Family) (id, version string) {
	id, _ = ColumnIn(models.FieldID, family)
	if family == FamilyVersion {
		version, _ = ColumnIn(models.FieldVersion, family)
	}
	return id, version
}

// updatable reports whether callers may change f through Update.
// Keys, authorship and timestamps are maintained by the engine.
func updatable(f models.Field) bool {
	switch f {
	case models.FieldID, models.FieldVersion, models.FieldCurrentVersion,
		models.FieldCreationDate, models.FieldCreatedBy,
		models.FieldLastModified, models.FieldModifiedBy:
		return false
	}
	return f.Valid()
}
