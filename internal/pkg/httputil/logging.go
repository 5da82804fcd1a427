package httputil

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sis-teknik/servicedesk/internal/pkg/ctxlog"
)

type accessKey struct{}

// accessRecord collects fields that inner middleware learn after the access
// logger has already wrapped the request.
type accessRecord struct {
	user atomic.Value
}

func setAccessUser(ctx context.Context, username string) {
	if rec, ok := ctx.Value(accessKey{}).(*accessRecord); ok {
		rec.user.Store(username)
	}
}

// RequestLoggerMiddleware puts a request-scoped logger into the context and
// writes one access line per request. Probe endpoints are logged at debug.
func RequestLoggerMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With("request_id", middleware.GetReqID(r.Context()))

			rec := &accessRecord{}
			ctx := context.WithValue(ctxlog.WithLogger(r.Context(), logger), accessKey{}, rec)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			level := slog.LevelInfo
			if isProbe(r.URL.Path) {
				level = slog.LevelDebug
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}
			if user, ok := rec.user.Load().(string); ok {
				attrs = append(attrs, "user", user)
			}

			logger.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

func isProbe(path string) bool {
	return path == "/healthz" || path == "/readyz"
}
