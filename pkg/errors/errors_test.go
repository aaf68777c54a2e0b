package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "load tasks")

	assert.Equal(t, "load tasks: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestFromErrorNormalises(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := Clone(ErrValidation, "ownerId is required")
	assert.Same(t, typed, FromError(typed))

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrInvalidWindow, "month 7 is outside the semester ranges")
	assert.Equal(t, "invalid planning window", ErrInvalidWindow.Message)
	assert.Equal(t, ErrInvalidWindow.Code, clone.Code)
	assert.Equal(t, "month 7 is outside the semester ranges", clone.Message)
	assert.Nil(t, Clone(nil, "x"))
}
