package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/contractiq/backend/internal/store"
	"github.com/contractiq/backend/internal/tenant"
)

type Middleware struct {
	svc     *Service
	tenants store.TenantStore
}

func NewMiddleware(svc *Service, tenants store.TenantStore) *Middleware {
	return &Middleware{svc: svc, tenants: tenants}
}

// Authenticate resolves the bearer token to a live tenant and stashes it in
// the request context. Deactivated tenants are rejected like unknown ones.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		tenantID, err := m.svc.VerifyToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		t, err := m.tenants.GetByID(r.Context(), tenantID)
		if err != nil || !t.Active() {
			writeError(w, http.StatusUnauthorized, "tenant not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
