package infostore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
)

func TestSizeValidator_CountsBytesNotRunes(t *testing.T) {
	v := NewSizeValidator(map[models.Field]int{models.FieldTitle: 6})

	// "äöü" is three runes but six bytes.
	require.NoError(t, v.Validate(&models.DocumentMetadata{Title: "äöü"}, []models.Field{models.FieldTitle}))

	err := v.Validate(&models.DocumentMetadata{Title: "äöüx"}, []models.Field{models.FieldTitle})
	var truncation *domain.TruncationError
	require.ErrorAs(t, err, &truncation)
	require.Len(t, truncation.Truncations, 1)
	assert.Equal(t, domain.Truncation{Field: models.FieldTitle, Limit: 6, Length: 7}, truncation.Truncations[0])
}

func TestSizeValidator_CollectsEveryField(t *testing.T) {
	v := NewSizeValidator(nil)
	doc := &models.DocumentMetadata{
		Title:          strings.Repeat("a", 200),
		URL:            strings.Repeat("b", 300),
		Categories:     strings.Repeat("c", 256),
		Filename:       strings.Repeat("€", 100), // 300 bytes
		Description:    "fits",
		VersionComment: "fits",
	}

	err := v.ValidateAll(doc)
	var truncation *domain.TruncationError
	require.ErrorAs(t, err, &truncation)
	assert.Equal(t,
		[]models.Field{models.FieldTitle, models.FieldURL, models.FieldCategories, models.FieldFilename},
		truncation.Fields())
	assert.ErrorIs(t, err, domain.ErrUserInput)
	assert.Contains(t, err.Error(), "filename (300 > 255 bytes)")
}

func TestSizeValidator_OnlyListedFields(t *testing.T) {
	v := NewSizeValidator(nil)
	doc := &models.DocumentMetadata{Title: strings.Repeat("a", 200)}

	assert.NoError(t, v.Validate(doc, []models.Field{models.FieldURL, models.FieldFileSize}))
	assert.Error(t, v.Validate(doc, []models.Field{models.FieldTitle, models.FieldTitle}))
}

func TestSizeValidator_EmptyDocumentPasses(t *testing.T) {
	assert.NoError(t, NewSizeValidator(nil).ValidateAll(&models.DocumentMetadata{}))
}
