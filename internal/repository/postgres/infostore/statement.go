package infostore

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/repository/postgres"
)

// rowKey addresses one head row, or version rows of one document.
type rowKey struct {
	ContextID int64
	ID        int64
	Versions  []int // version family only; empty = every version
}

func (k rowKey) where(family Family, a *argList) (string, error) {
	if k.ContextID <= 0 {
		return "", domain.NewCodeError("statement: missing context id")
	}
	idCol, versionCol := keyColumns(family)
	pred := "cid = " + a.add(k.ContextID) + " AND " + idCol + " = " + a.add(k.ID)
	if family == FamilyVersion && len(k.Versions) > 0 {
		versions := make([]int32, 0, len(k.Versions))
		for _, v := range k.Versions {
			versions = append(versions, int32(v))
		}
		pred += " AND " + versionCol + " = ANY(" + a.add(versions) + ")"
	}
	return pred, nil
}

// storedColumns returns the column names and field values of doc for every
// field stored in family, skipping the fields in omit.
func storedColumns(doc *models.DocumentMetadata, family Family, omit ...models.Field) ([]string, []any, error) {
	skip := mapset.NewThreadUnsafeSet(omit...)
	var cols []string
	var vals []any
	for _, f := range StoredFields(family) {
		if skip.Contains(f) {
			continue
		}
		col, _ := ColumnIn(f, family)
		v, err := doc.Get(f)
		if err != nil {
			return nil, nil, &domain.CodeError{Message: "statement: read field", Err: err}
		}
		if n, ok := v.(int); ok {
			v = int32(n)
		}
		cols = append(cols, col)
		vals = append(vals, v)
	}
	return cols, vals, nil
}

// BuildInsert writes every stored field of doc into the family's table. The
// head id is drawn from the document sequence and returned.
func BuildInsert(tables *postgres.TableNames, family Family, variant repo.Variant, doc *models.DocumentMetadata) (Statement, error) {
	if doc.ContextID <= 0 {
		return Statement{}, domain.NewCodeError("insert: missing context id")
	}
	var a argList
	cols := []string{"cid"}
	values := []string{a.add(doc.ContextID)}

	var omit []models.Field
	if family == FamilyHead && doc.ID == 0 {
		omit = append(omit, models.FieldID)
		cols = append(cols, "id")
		values = append(values, fmt.Sprintf("nextval('%s_id_seq')", tables.Documents))
	}
	stored, vals, err := storedColumns(doc, family, omit...)
	if err != nil {
		return Statement{}, err
	}
	for i, col := range stored {
		cols = append(cols, col)
		values = append(values, a.add(vals[i]))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		TableFor(tables, family, variant), strings.Join(cols, ", "), strings.Join(values, ", "))
	if family == FamilyHead {
		sql += " RETURNING id"
	}
	return Statement{SQL: sql, Args: a.args}, nil
}

// stamp controls how an update moves last_modified.
type stamp struct {
	// Now is the commit time in epoch millis.
	Now int64
	// Exact writes Now verbatim; otherwise the value becomes
	// GREATEST(Now, last_modified + 1) so it strictly increases.
	Exact bool
}

// BuildUpdate sets the listed fields of doc that family stores, advances
// last_modified, records the modifier, and guards the write with
// last_modified <= observed. The statement returns the new last_modified.
func BuildUpdate(tables *postgres.TableNames, family Family, key rowKey, doc *models.DocumentMetadata, fields []models.Field, observed int64, st stamp) (Statement, error) {
	var a argList
	var sets []string
	seen := mapset.NewThreadUnsafeSet[models.Field]()
	for _, f := range fields {
		if !updatable(f) {
			return Statement{}, domain.NewCodeError("update: field %s is not updatable", f)
		}
		if !seen.Add(f) {
			continue
		}
		col, ok := ColumnIn(f, family)
		if !ok {
			continue
		}
		v, err := doc.Get(f)
		if err != nil {
			return Statement{}, &domain.CodeError{Message: "update: read field", Err: err}
		}
		if n, isInt := v.(int); isInt {
			v = int32(n)
		}
		sets = append(sets, col+" = "+a.add(v))
	}

	modifiedBy, _ := ColumnIn(models.FieldModifiedBy, family)
	sets = append(sets, modifiedBy+" = "+a.add(doc.ModifiedBy))
	if st.Exact {
		sets = append(sets, "last_modified = "+a.add(st.Now))
	} else {
		sets = append(sets, "last_modified = GREATEST("+a.add(st.Now)+", last_modified + 1)")
	}

	where, err := key.where(family, &a)
	if err != nil {
		return Statement{}, err
	}
	where += " AND last_modified <= " + a.add(observed)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING last_modified",
		TableFor(tables, family, repo.VariantLive), strings.Join(sets, ", "), where)
	return Statement{SQL: sql, Args: a.args}, nil
}

// BuildDelete removes the rows addressed by key from family in variant.
// observed > 0 adds the optimistic predicate.
func BuildDelete(tables *postgres.TableNames, family Family, variant repo.Variant, key rowKey, observed int64) (Statement, error) {
	var a argList
	where, err := key.where(family, &a)
	if err != nil {
		return Statement{}, err
	}
	if observed > 0 {
		where += " AND last_modified <= " + a.add(observed)
	}
	return Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s", TableFor(tables, family, variant), where),
		Args: a.args,
	}, nil
}

// BuildCopy copies the rows addressed by key between the live and shadow
// variants of family. Column lists are identical in both.
func BuildCopy(tables *postgres.TableNames, family Family, from, to repo.Variant, key rowKey) (Statement, error) {
	var a argList
	where, err := key.where(family, &a)
	if err != nil {
		return Statement{}, err
	}
	cols := []string{"cid"}
	for _, f := range StoredFields(family) {
		col, _ := ColumnIn(f, family)
		cols = append(cols, col)
	}
	list := strings.Join(cols, ", ")
	return Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s WHERE %s",
			TableFor(tables, family, to), list, list, TableFor(tables, family, from), where),
		Args: a.args,
	}, nil
}

// BuildPurgeContext deletes every row of table that belongs to contextID.
func BuildPurgeContext(table string, contextID int64) (Statement, error) {
	if contextID <= 0 {
		return Statement{}, domain.NewCodeError("purge: missing context id")
	}
	return Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE cid = $1", table),
		Args: []any{contextID},
	}, nil
}

// Head version pointer moves for BuildPointerUpdate.
const (
	pointerKeep = 0  // leave the pointer alone, only touch the head
	pointerNext = -1 // next number never used by a live or deleted version
)

// BuildPointerUpdate moves the head's version pointer to version (or one of
// the pointer* sentinels), records the modifier and advances last_modified,
// guarded by last_modified <= observed. Returns version and last_modified.
func BuildPointerUpdate(tables *postgres.TableNames, contextID, id int64, version int, modifiedBy, observed int64, st stamp) (Statement, error) {
	if contextID <= 0 {
		return Statement{}, domain.NewCodeError("pointer update: missing context id")
	}
	var a argList
	cid := a.add(contextID)
	docID := a.add(id)

	var sets []string
	switch {
	case version == pointerNext:
		sets = append(sets, fmt.Sprintf(
			"version = (SELECT COALESCE(MAX(n), 0) + 1 FROM ("+
				"SELECT version_number AS n FROM %s WHERE cid = %s AND infostore_id = %s "+
				"UNION ALL SELECT version_number FROM %s WHERE cid = %s AND infostore_id = %s) known)",
			tables.DocumentVersions, cid, docID, tables.DelDocumentVersions, cid, docID))
	case version > 0:
		sets = append(sets, "version = "+a.add(int32(version)))
	case version != pointerKeep:
		return Statement{}, domain.NewCodeError("pointer update: invalid version %d", version)
	}
	sets = append(sets, "changed_by = "+a.add(modifiedBy))
	if st.Exact {
		sets = append(sets, "last_modified = "+a.add(st.Now))
	} else {
		sets = append(sets, "last_modified = GREATEST("+a.add(st.Now)+", last_modified + 1)")
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE cid = %s AND id = %s AND last_modified <= %s RETURNING version, last_modified",
		tables.Documents, strings.Join(sets, ", "), cid, docID, a.add(observed))
	return Statement{SQL: sql, Args: a.args}, nil
}
