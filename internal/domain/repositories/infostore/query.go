package infostore

import (
	"time"

	models "infostore/internal/domain/models/infostore"
)

// Policy decides which record family answers for a field stored in both.
type Policy int

const (
	// HeadWins reads shared attributes from the head; used for the live view.
	HeadWins Policy = iota
	// VersionWins reads shared attributes from the version row; used when a
	// specific, possibly historical, version is requested.
	VersionWins
)

func (p Policy) String() string {
	if p == VersionWins {
		return "version_wins"
	}
	return "head_wins"
}

// Variant selects the live tables or their deleted-row mirrors.
type Variant int

const (
	VariantLive Variant = iota
	VariantShadow
)

// Filter restricts a query. The concrete types below are the only filters;
// the statement builder translates each of them.
type Filter interface {
	filter()
}

type (
	// FolderFilter matches documents inside one folder.
	FolderFilter struct {
		FolderID int64
	}

	// CreatorFilter matches rows created by one user.
	CreatorFilter struct {
		UserID int64
	}

	// IDFilter matches a set of document ids.
	IDFilter struct {
		IDs []int64
	}

	// VersionFilter matches specific versions of one document. An empty
	// Versions slice matches every version.
	VersionFilter struct {
		DocumentID int64
		Versions   []int
	}

	// TimeRangeFilter matches rows whose last modification lies in
	// [Since, Until). A zero bound is open.
	TimeRangeFilter struct {
		Since time.Time
		Until time.Time
	}

	// FilenameFilter matches an exact filename.
	FilenameFilter struct {
		Filename string
	}

	// RawFilter is a caller-supplied predicate. Placeholders are written as
	// '?' and renumbered by the builder. Columns must be qualified with the
	// aliases h (head) and v (version).
	RawFilter struct {
		Predicate string
		Args      []any
	}

	// AndFilter requires all of its members to match.
	AndFilter []Filter
)

func (FolderFilter) filter()    {}
func (CreatorFilter) filter()   {}
func (IDFilter) filter()        {}
func (VersionFilter) filter()   {}
func (TimeRangeFilter) filter() {}
func (FilenameFilter) filter()  {}
func (RawFilter) filter()       {}
func (AndFilter) filter()       {}

// Sort orders results by one field.
type Sort struct {
	Field     models.Field
	Ascending bool
}

// Query describes a field-projected read. ContextID is mandatory.
type Query struct {
	ContextID int64
	Fields    []models.Field
	Policy    Policy
	Variant   Variant
	Filter    Filter // may be nil
	Sort      *Sort  // may be nil
	Limit     int    // 0 = unlimited
	Offset    int
}
