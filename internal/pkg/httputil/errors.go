package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/sis-teknik/servicedesk/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to a response status. An empty
// Message sends err.Error() to the client.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the first matching mapping, or a 500 for unmapped
// errors. Mapped 5xx responses (gateway failures and the like) are logged
// as warnings since the client only sees the short message.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		if m.Status >= http.StatusInternalServerError {
			ctxlog.FromContext(ctx).Warn("request failed upstream", "status", m.Status, "error", err)
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		Error(w, m.Status, msg)
		return
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
