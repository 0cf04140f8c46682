package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "Ride not found", ErrRideNotFound.Error())
	assert.Equal(t, "too many tags (tags)", Validation("tags", "too many tags").Error())
	assert.Equal(t, "Storage failure: boom", Internal("Storage failure", errors.New("boom")).Error())
}

func TestWrapAppError(t *testing.T) {
	cause := errors.New("timeout")
	err := WrapAppError(ErrGeocoding, cause)

	assert.True(t, errors.Is(err, ErrGeocoding))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrRideFull))
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.Nil(t, WrapAppError(nil, cause))

	wrapped := fmt.Errorf("search: %w", err)
	assert.True(t, errors.Is(wrapped, ErrGeocoding))
	assert.Equal(t, CodeServiceUnavailable, GetAppError(wrapped).Code)
}

func TestGetAppError(t *testing.T) {
	assert.Same(t, ErrRideFull, GetAppError(fmt.Errorf("accept: %w", ErrRideFull)))

	generic := GetAppError(errors.New("db down"))
	assert.Equal(t, CodeInternal, generic.Code)
	assert.Equal(t, http.StatusInternalServerError, generic.Status)
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(ErrDuplicateRequest, CodeConflict))
	assert.False(t, HasCode(ErrDuplicateRequest, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
}

func TestStorage(t *testing.T) {
	assert.Nil(t, Storage(nil))
	assert.Same(t, ErrRideNotFound, Storage(ErrRideNotFound))

	cause := errors.New("connection reset")
	err := Storage(cause)
	assert.True(t, HasCode(err, CodeInternal))
	assert.ErrorIs(t, err, cause)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))
	assert.Equal(t, "ctx: boom", Wrap(errors.New("boom"), "ctx").Error())
}
