package httputil

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/pkg/ctxlog"
	"github.com/stretchr/testify/assert"
)

func TestRequestLoggerMiddleware_RecordsUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxlog.FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusAccepted)
	})
	handler := RequestLoggerMiddleware(logger)(
		AuthMiddleware(stubValidator{"tok": domain.RoleAdmin})(inner),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/intakes", nil)
	req.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `msg=handled`)
	assert.Contains(t, out, `msg="http request"`)
	assert.Contains(t, out, "status=202")
	assert.Contains(t, out, "user=user-tok")
}

func TestRequestLoggerMiddleware_ProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	handler := RequestLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Empty(t, buf.String())
}
