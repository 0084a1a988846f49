package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/envdash/internal/core"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSON(rec, http.StatusAccepted, struct {
		Timestamp string `json:"timestamp"`
	}{"2026-10-16T12:00:00.000Z"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"timestamp":"2026-10-16T12:00:00.000Z"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, http.StatusBadRequest, "missing domain")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing domain", body.Error)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: no resident database mapped", core.ErrInvalidInput), http.StatusBadRequest},
		{"forbidden", fmt.Errorf("%w: customer 1 is ITAR hosted", core.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("%w: no poll for customer 1", core.ErrNotFound), http.StatusNotFound},
		{"upstream", fmt.Errorf("%w: fetch customers: timeout", core.ErrUpstream), http.StatusBadGateway},
		{"wrapped twice", fmt.Errorf("list: %w", fmt.Errorf("%w: x", core.ErrUpstream)), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			WriteServiceError(rec, tt.err)

			assert.Equal(t, tt.want, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}
