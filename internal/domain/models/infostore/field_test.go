package infostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField_RoundTripsEveryName(t *testing.T) {
	for _, f := range AllFields() {
		parsed, err := ParseField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}

	_, err := ParseField("no_such_field")
	assert.Error(t, err)
}

func TestField_Valid(t *testing.T) {
	assert.True(t, FieldID.Valid())
	assert.True(t, FieldCurrentVersion.Valid())
	assert.False(t, FieldCount.Valid())
	assert.False(t, Field(-1).Valid())
	assert.Equal(t, "field(99)", Field(99).String())
}

// sample returns a value of the right storage type for f.
func sample(f Field) any {
	switch f {
	case FieldVersion, FieldColorLabel:
		return 3
	case FieldCurrentVersion:
		return true
	case FieldCreationDate, FieldLastModified:
		return int64(1700000000123)
	}
	if f.IsText() {
		return "value-" + f.String()
	}
	return int64(42)
}

func TestDocumentMetadata_GetSetEveryField(t *testing.T) {
	for _, f := range AllFields() {
		t.Run(f.String(), func(t *testing.T) {
			var doc DocumentMetadata
			want := sample(f)
			require.NoError(t, doc.Set(f, want))

			got, err := doc.Get(f)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDocumentMetadata_SetRejectsWrongType(t *testing.T) {
	var doc DocumentMetadata
	assert.Error(t, doc.Set(FieldTitle, 12))
	assert.Error(t, doc.Set(FieldVersion, int64(1)))
	assert.Error(t, doc.Set(FieldCount, "x"))

	_, err := doc.Get(FieldCount)
	assert.Error(t, err)
}

func TestMillis(t *testing.T) {
	assert.Zero(t, ToMillis(time.Time{}))
	assert.True(t, FromMillis(0).IsZero())

	ts := time.Date(2024, 3, 1, 12, 0, 0, 456_000_000, time.UTC)
	assert.True(t, ts.Equal(FromMillis(ToMillis(ts))))
}

func TestPermissionLevel_CanRead(t *testing.T) {
	caller := Caller{ContextID: 1, UserID: 7}

	tests := []struct {
		level PermissionLevel
		owner int64
		want  bool
	}{
		{PermissionNone, 7, false},
		{PermissionSeeFolder, 7, false},
		{PermissionReadOwn, 7, true},
		{PermissionReadOwn, 8, false},
		{PermissionReadAll, 8, true},
		{PermissionWrite, 8, true},
		{PermissionAdmin, 8, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.CanRead(caller, tt.owner), "level %d owner %d", tt.level, tt.owner)
	}
}

func TestParsePermissionLevel(t *testing.T) {
	p, ok := ParsePermissionLevel("read_own")
	assert.True(t, ok)
	assert.Equal(t, PermissionReadOwn, p)

	_, ok = ParsePermissionLevel("superuser")
	assert.False(t, ok)
}
