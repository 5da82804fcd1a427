package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/stretchr/testify/assert"
)

type stubValidator map[string]domain.Role

func (s stubValidator) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	role, ok := s[token]
	if !ok {
		return "", "", errors.New("bad token")
	}
	return "user-" + token, role, nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := stubValidator{"tech": domain.RoleTechnician}

	var gotUser string
	var gotRole domain.Role
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUsername(r.Context())
		gotRole = GetRole(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer tech", http.StatusNoContent},
		{"lowercase scheme", "bearer tech", http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic tech", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser, gotRole = "", ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "user-tech", gotUser)
				assert.Equal(t, domain.RoleTechnician, gotRole)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireRole(domain.RoleTechnician)(ok)

	tests := []struct {
		name string
		role domain.Role
		want int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"installer", domain.RoleInstaller, http.StatusForbidden},
		{"technician", domain.RoleTechnician, http.StatusOK},
		{"admin", domain.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.role != "" {
				req = req.WithContext(context.WithValue(req.Context(), roleKey, tt.role))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://panel.test"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/intakes", nil)
		req.Header.Set("Origin", "https://panel.test")
		req.Header.Set("Access-Control-Request-Method", "PATCH")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://panel.test", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("other origin gets no allow header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/intakes", nil)
		req.Header.Set("Origin", "https://evil.test")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHandleError(t *testing.T) {
	errMissing := errors.New("missing")
	mappings := []ErrorMapping{
		{Error: errMissing, Status: http.StatusNotFound},
		{Error: context.DeadlineExceeded, Status: http.StatusBadGateway, Message: "gateway timeout"},
	}

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"mapped", errMissing, http.StatusNotFound, `"missing"`},
		{"wrapped", errors.Join(errors.New("ctx"), errMissing), http.StatusNotFound, "missing"},
		{"custom message", context.DeadlineExceeded, http.StatusBadGateway, "gateway timeout"},
		{"unmapped", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			HandleError(context.Background(), rec, tt.err, mappings)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
