package infostore

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"infostore/internal/config"
	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
)

// SizeValidator checks text fields against their column budgets in UTF-8
// bytes. It reports every offending field at once.
type SizeValidator struct {
	limits map[models.Field]int
}

// NewSizeValidator uses limits, or config.FieldByteLimits when nil.
func NewSizeValidator(limits map[models.Field]int) *SizeValidator {
	if limits == nil {
		limits = config.FieldByteLimits
	}
	return &SizeValidator{limits: limits}
}

// errTooLong is the ozzo error for an oversized value.
var errTooLong = validation.NewError("validation_byte_length", "exceeds the byte limit")

// maxBytes is an ozzo rule comparing len(s), which counts UTF-8 bytes.
func maxBytes(limit int) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return errTooLong.SetParams(map[string]interface{}{"limit": limit, "length": len(s)})
		}
		return nil
	})
}

// Validate checks the listed fields of doc. Fields without a limit and
// non-text fields always pass. The result is nil or a *domain.TruncationError.
func (v *SizeValidator) Validate(doc *models.DocumentMetadata, fields []models.Field) error {
	errs := validation.Errors{}
	var truncations []domain.Truncation

	seen := mapset.NewThreadUnsafeSet[models.Field]()
	for _, f := range fields {
		if !seen.Add(f) {
			continue
		}
		limit, ok := v.limits[f]
		if !ok || !f.IsText() {
			continue
		}
		value, err := doc.Get(f)
		if err != nil {
			return &domain.CodeError{Message: "size check", Err: err}
		}
		s, _ := value.(string)
		if err := validation.Validate(s, maxBytes(limit)); err != nil {
			var verr validation.Error
			if !errors.As(err, &verr) {
				return &domain.CodeError{Message: "size check", Err: err}
			}
			errs[f.String()] = err
			truncations = append(truncations, domain.Truncation{Field: f, Limit: limit, Length: len(s)})
		}
	}

	if errs.Filter() == nil {
		return nil
	}
	return &domain.TruncationError{Truncations: truncations}
}

// ValidateAll checks every field that has a limit.
func (v *SizeValidator) ValidateAll(doc *models.DocumentMetadata) error {
	return v.Validate(doc, models.AllFields())
}
