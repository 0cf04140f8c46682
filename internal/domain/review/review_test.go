package review

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/carwave/carpool/pkg/errors"
)

func TestNormalize(t *testing.T) {
	got, err := DefaultRules.Normalize(UpsertInput{
		Rating: 4,
		Body:   "  smooth ride ",
		Tags:   []string{" punctual", "friendly", "punctual "},
	})
	require.NoError(t, err)
	assert.Equal(t, "smooth ride", got.Body)
	assert.Equal(t, []string{"punctual", "friendly"}, got.Tags)
}

func TestNormalize_Invalid(t *testing.T) {
	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = string(rune('a' + i))
	}

	tests := []struct {
		name  string
		in    UpsertInput
		field string
	}{
		{"rating below", UpsertInput{Rating: 0, Body: "x"}, "rating"},
		{"rating above", UpsertInput{Rating: 6, Body: "x"}, "rating"},
		{"blank body", UpsertInput{Rating: 3, Body: "  "}, "body"},
		{"empty tag", UpsertInput{Rating: 3, Body: "x", Tags: []string{"ok", " "}}, "tags"},
		{"too many tags", UpsertInput{Rating: 3, Body: "x", Tags: eleven}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultRules.Normalize(tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.field, apperrors.GetAppError(err).Field)
		})
	}
}

func TestNormalize_TenTagsAllowed(t *testing.T) {
	ten := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	got, err := DefaultRules.Normalize(UpsertInput{Rating: 5, Body: "x", Tags: ten})
	require.NoError(t, err)
	assert.Len(t, got.Tags, 10)
}

func TestNew_SelfReview(t *testing.T) {
	id := uuid.New()
	_, err := New(id, id, RoleDriver, UpsertInput{Rating: 5, Body: "me"}, time.Now())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestReplace(t *testing.T) {
	rv, err := New(uuid.New(), uuid.New(), RolePassenger, UpsertInput{Rating: 2, Body: "late", Tags: []string{"late"}}, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	now := time.Now()
	rv.Replace(UpsertInput{Rating: 4, Body: "better", Tags: []string{"quiet"}}, now)
	assert.Equal(t, 4, rv.Rating)
	assert.Equal(t, []string{"quiet"}, rv.Tags)
	assert.Equal(t, now, rv.LastModified)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("Driver")
	require.NoError(t, err)
	assert.True(t, r.AsDriver())
	assert.Equal(t, RolePassenger, RoleOf(false))

	_, err = ParseRole("pilot")
	assert.Error(t, err)
}
