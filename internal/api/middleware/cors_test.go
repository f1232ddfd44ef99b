package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, origins []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	h := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/v1/contracts", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	rec := corsRequest(t, []string{"https://app.example.com"}, http.MethodGet, "https://app.example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	rec := corsRequest(t, []string{"https://app.example.com"}, http.MethodGet, "https://evil.example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardEchoesCaller(t *testing.T) {
	rec := corsRequest(t, []string{"*"}, http.MethodGet, "https://anything.test")

	assert.Equal(t, "https://anything.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	rec := corsRequest(t, []string{"*"}, http.MethodOptions, "https://app.example.com")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}
