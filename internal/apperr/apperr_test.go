package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load lead: %w", NotFound("lead"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"not found", NotFound("lead"), http.StatusNotFound},
		{"transition", InvalidTransition("A", "B"), http.StatusConflict},
		{"blocked", ValidationBlocked([]string{"required_fields"}), http.StatusUnprocessableEntity},
		{"remote 4xx passes through", Remote(403, "denied"), http.StatusForbidden},
		{"remote 5xx is bad gateway", Remote(500, ""), http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "lead not found", Message(NotFound("lead")))
	assert.Equal(t, "core banking request failed with status 502", Message(Remote(502, "")))
}
