package infostore

import (
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/repository/postgres"
)

// Statement is SQL text plus its positional arguments. Builders never
// execute anything.
type Statement struct {
	SQL  string
	Args []any
}

// argList numbers placeholders in the order values are added.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return "$" + strconv.Itoa(len(a.args))
}

// selectBuilder renders one select, remembering which families it touched.
type selectBuilder struct {
	policy   repo.Policy
	args     argList
	families mapset.Set[Family]
}

func (b *selectBuilder) column(f models.Field) (Column, error) {
	c, err := Resolve(f, b.policy)
	if err != nil {
		return Column{}, err
	}
	if c.Family == FamilyComputed {
		b.families.Append(FamilyHead, FamilyVersion)
	} else {
		b.families.Add(c.Family)
	}
	return c, nil
}

// BuildSelect assembles the select for q. The projected columns appear in
// the order of q.Fields.
func BuildSelect(tables *postgres.TableNames, q repo.Query) (Statement, error) {
	if q.ContextID <= 0 {
		return Statement{}, domain.NewCodeError("select: missing context id")
	}
	if len(q.Fields) == 0 {
		return Statement{}, domain.NewCodeError("select: no fields requested")
	}

	b := &selectBuilder{policy: q.Policy, families: mapset.NewThreadUnsafeSet[Family]()}
	contextPlaceholder := b.args.add(q.ContextID)

	projection := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		c, err := b.column(f)
		if err != nil {
			return Statement{}, err
		}
		projection = append(projection, c.Qualified())
	}

	var where string
	if q.Filter != nil {
		var err error
		if where, err = b.filter(q.Filter); err != nil {
			return Statement{}, err
		}
	}

	var orderBy string
	if q.Sort != nil {
		c, err := b.column(q.Sort.Field)
		if err != nil {
			return Statement{}, err
		}
		direction := "DESC"
		if q.Sort.Ascending {
			direction = "ASC"
		}
		orderBy = c.Qualified() + " " + direction
	}

	// The live view needs the head's version pointer to pick the current row.
	if q.Policy == repo.HeadWins && b.families.Contains(FamilyVersion) {
		b.families.Add(FamilyHead)
	}

	var from, primary string
	headTable := TableFor(tables, FamilyHead, q.Variant)
	versionTable := TableFor(tables, FamilyVersion, q.Variant)
	switch {
	case b.families.Contains(FamilyHead) && b.families.Contains(FamilyVersion):
		from = fmt.Sprintf("%s %s JOIN %s %s ON %s.cid = %s.cid AND %s.infostore_id = %s.id",
			headTable, headAlias, versionTable, versionAlias,
			versionAlias, headAlias, versionAlias, headAlias)
		if q.Policy == repo.HeadWins {
			from += fmt.Sprintf(" AND %s.version_number = %s.version", versionAlias, headAlias)
		}
		primary = headAlias
	case b.families.Contains(FamilyVersion):
		from = versionTable + " " + versionAlias
		primary = versionAlias
	default:
		from = headTable + " " + headAlias
		primary = headAlias
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(projection, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(from)
	sb.WriteString(" WHERE ")
	sb.WriteString(primary + ".cid = " + contextPlaceholder)
	if where != "" {
		sb.WriteString(" AND " + where)
	}

	// Ties are broken by document id and version so paging is stable.
	tieBreak := primary + "." + idColumn(primary)
	if orderBy != "" {
		sb.WriteString(" ORDER BY " + orderBy + ", " + tieBreak)
	} else {
		sb.WriteString(" ORDER BY " + tieBreak)
	}
	if b.families.Contains(FamilyVersion) && !(q.Policy == repo.HeadWins && primary == headAlias) {
		sb.WriteString(", " + versionAlias + ".version_number")
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.args.add(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET " + b.args.add(q.Offset))
	}

	return Statement{SQL: sb.String(), Args: b.args.args}, nil
}

func idColumn(alias string) string {
	if alias == versionAlias {
		return "infostore_id"
	}
	return "id"
}

// filter renders f into a predicate.
func (b *selectBuilder) filter(f repo.Filter) (string, error) {
	switch f := f.(type) {
	case repo.FolderFilter:
		c, err := b.column(models.FieldFolderID)
		if err != nil {
			return "", err
		}
		return c.Qualified() + " = " + b.args.add(f.FolderID), nil

	case repo.CreatorFilter:
		c, err := b.column(models.FieldCreatedBy)
		if err != nil {
			return "", err
		}
		return c.Qualified() + " = " + b.args.add(f.UserID), nil

	case repo.IDFilter:
		if len(f.IDs) == 0 {
			return "FALSE", nil
		}
		c, err := b.column(models.FieldID)
		if err != nil {
			return "", err
		}
		return c.Qualified() + " = ANY(" + b.args.add(f.IDs) + ")", nil

	case repo.VersionFilter:
		b.families.Add(FamilyVersion)
		pred := versionAlias + ".infostore_id = " + b.args.add(f.DocumentID)
		if len(f.Versions) > 0 {
			versions := make([]int32, 0, len(f.Versions))
			for _, v := range f.Versions {
				versions = append(versions, int32(v))
			}
			pred += " AND " + versionAlias + ".version_number = ANY(" + b.args.add(versions) + ")"
		}
		return pred, nil

	case repo.TimeRangeFilter:
		c, err := b.column(models.FieldLastModified)
		if err != nil {
			return "", err
		}
		var parts []string
		if !f.Since.IsZero() {
			parts = append(parts, c.Qualified()+" >= "+b.args.add(models.ToMillis(f.Since)))
		}
		if !f.Until.IsZero() {
			parts = append(parts, c.Qualified()+" < "+b.args.add(models.ToMillis(f.Until)))
		}
		if len(parts) == 0 {
			return "TRUE", nil
		}
		return strings.Join(parts, " AND "), nil

	case repo.FilenameFilter:
		c, err := b.column(models.FieldFilename)
		if err != nil {
			return "", err
		}
		return c.Qualified() + " = " + b.args.add(f.Filename), nil

	case repo.RawFilter:
		return b.raw(f)

	case repo.AndFilter:
		if len(f) == 0 {
			return "TRUE", nil
		}
		parts := make([]string, 0, len(f))
		for _, member := range f {
			pred, err := b.filter(member)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+pred+")")
		}
		return strings.Join(parts, " AND "), nil
	}
	return "", domain.NewCodeError("select: unsupported filter %T", f)
}

// raw renumbers '?' placeholders of a caller predicate. The predicate may
// reference either alias, so both families are joined.
func (b *selectBuilder) raw(f repo.RawFilter) (string, error) {
	if strings.TrimSpace(f.Predicate) == "" {
		return "", domain.NewCodeError("select: empty raw predicate")
	}
	if n := strings.Count(f.Predicate, "?"); n != len(f.Args) {
		return "", domain.NewCodeError("select: raw predicate has %d placeholders but %d args", n, len(f.Args))
	}
	b.families.Append(FamilyHead, FamilyVersion)

	var sb strings.Builder
	next := 0
	for _, r := range f.Predicate {
		if r == '?' {
			sb.WriteString(b.args.add(f.Args[next]))
			next++
			continue
		}
		sb.WriteRune(r)
	}
	return "(" + sb.String() + ")", nil
}
