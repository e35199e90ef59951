package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Input("wrong_level", "wrong", nil)
	wrapped := fmt.Errorf("scan: %w", base)

	assert.Equal(t, KindInput, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", Input("bad", "bad", nil), http.StatusBadRequest},
		{"not found", NotFound("missing", "missing", nil), http.StatusNotFound},
		{"upstream", Upstream("redis", errors.New("down")), http.StatusServiceUnavailable},
		{"setup", Setup("no_levels", nil), http.StatusInternalServerError},
		{"untagged", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestDisplayMessage(t *testing.T) {
	assert.Equal(t, "nope", DisplayMessage(Input("x", "nope", nil)))
	assert.Equal(t, contactSupport, DisplayMessage(Setup("team_not_found", nil)))
	assert.Equal(t, contactSupport, DisplayMessage(errors.New("plain")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("store_write", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upstream: store_write")
}
