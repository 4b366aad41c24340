package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad", nil), http.StatusBadRequest},
		{Conflict("dup", nil), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Unauthorized("no"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{Storage("disk", errors.New("io")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e, ok := As(tt.err)
		if assert.True(t, ok) {
			assert.Equal(t, tt.want, e.Status())
		}
	}
}

func TestAsThroughWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("create: %w", Storage("failed to store image", cause))

	assert.True(t, IsKind(err, KindStorage))
	assert.False(t, IsKind(err, KindNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "create: failed to store image: disk full", err.Error())
}

func TestAsPlainError(t *testing.T) {
	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}
