package infostore

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
)

// scanTarget receives one projected column and coerces it into the
// in-memory representation expected by DocumentMetadata.Set.
type scanTarget interface {
	dest() any
	value() any
}

type int8Target struct{ v pgtype.Int8 }

func (t *int8Target) dest() any  { return &t.v }
func (t *int8Target) value() any { return t.v.Int64 }

// narrowTarget reads INTEGER and SMALLINT columns into an int.
type narrowTarget struct{ v pgtype.Int4 }

func (t *narrowTarget) dest() any  { return &t.v }
func (t *narrowTarget) value() any { return int(t.v.Int32) }

type textTarget struct{ v pgtype.Text }

func (t *textTarget) dest() any  { return &t.v }
func (t *textTarget) value() any { return t.v.String }

type boolTarget struct{ v pgtype.Bool }

func (t *boolTarget) dest() any  { return &t.v }
func (t *boolTarget) value() any { return t.v.Bool }

// newScanTarget picks the target for f. Timestamps are epoch millis and
// pass through int8Target; DocumentMetadata.Set converts them.
func newScanTarget(f models.Field) (scanTarget, error) {
	switch f {
	case models.FieldID, models.FieldFolderID, models.FieldCreatedBy, models.FieldModifiedBy,
		models.FieldFileSize, models.FieldCreationDate, models.FieldLastModified:
		return &int8Target{}, nil
	case models.FieldVersion, models.FieldColorLabel:
		return &narrowTarget{}, nil
	case models.FieldCurrentVersion:
		return &boolTarget{}, nil
	}
	if f.IsText() {
		return &textTarget{}, nil
	}
	return nil, domain.NewCodeError("scan: no target for field %s", f)
}

// rowScanner scans rows of a fixed projection, reusing its targets.
type rowScanner struct {
	fields  []models.Field
	targets []scanTarget
	dests   []any
}

func newRowScanner(fields []models.Field) (*rowScanner, error) {
	s := &rowScanner{
		fields:  fields,
		targets: make([]scanTarget, len(fields)),
		dests:   make([]any, len(fields)),
	}
	for i, f := range fields {
		t, err := newScanTarget(f)
		if err != nil {
			return nil, err
		}
		s.targets[i] = t
		s.dests[i] = t.dest()
	}
	return s, nil
}

// scan reads the current row of rows into a new record.
func (s *rowScanner) scan(rows interface{ Scan(dest ...any) error }, contextID int64) (*models.DocumentMetadata, error) {
	if err := rows.Scan(s.dests...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, &domain.CodeError{Message: "scan row", Err: err}
	}
	doc := &models.DocumentMetadata{ContextID: contextID}
	for i, f := range s.fields {
		if err := doc.Set(f, s.targets[i].value()); err != nil {
			return nil, &domain.CodeError{Message: "coerce column", Err: err}
		}
	}
	return doc, nil
}
