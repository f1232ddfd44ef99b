package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contractiq/backend/internal/auth"
	"github.com/contractiq/backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the core's sentinel errors to HTTP statuses.
// AccessDenied is reported as 404 to avoid confirming a foreign resource
// exists; the violation itself is already audited at the store layer.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrAccessDenied):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, models.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "embedding service unavailable, retry later"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
