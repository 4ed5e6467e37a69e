package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("loading user: %w", ErrNotFound), http.StatusNotFound},
		{New(ErrConflict, "email already registered"), http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrTooLarge, http.StatusRequestEntityTooLarge},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestMessage(t *testing.T) {
	err := fmt.Errorf("create: %w", Newf(ErrConflict, "email %s already registered", "a@b.c"))
	assert.Equal(t, "email a@b.c already registered", Message(err))
	assert.True(t, errors.Is(err, ErrConflict))

	assert.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "Not Found", Message(ErrNotFound))
}
