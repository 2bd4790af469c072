package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusBadRequest, "Prompt không được để trống.")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Prompt không được để trống.", body.Error)

	// Reason is a denial-only field and must not appear on plain errors.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "reason")
}

func TestRespondWithDenial(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithDenial(rec, "Đã hết quota request tháng này (50/50).", "requests_exhausted")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "requests_exhausted", body.Reason)
	assert.Contains(t, body.Error, "50/50")
}

func TestRespondWithJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := RespondWithJSON(rec, http.StatusCreated, map[string]string{"status": "ok"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
