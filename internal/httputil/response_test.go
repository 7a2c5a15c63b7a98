package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp["error"]
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"cycle": 42})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"cycle":42}`, rec.Body.String())
}

func TestWriteJSONOK(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteJSONOK(rec, []string{"avd_alpha"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["avd_alpha"]`, rec.Body.String())
}

func TestWriteHTML(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteHTML(rec, []byte("<p>surface</p>"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<p>surface</p>", rec.Body.String())
}

// ----------------------------------------------------------------------------

func TestErrorHelpers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no surface") }, http.StatusNotFound, "no surface"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad behavior") }, http.StatusBadRequest, "bad behavior"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "render failed") }, http.StatusInternalServerError, "render failed"},
		{"method", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
		{"explicit", func(w http.ResponseWriter) { WriteJSONError(w, http.StatusConflict, "busy") }, http.StatusConflict, "busy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.msg, decodeError(t, rec))
		})
	}
}
