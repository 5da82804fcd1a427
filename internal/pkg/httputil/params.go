package httputil

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UUIDParam returns the named URL parameter and whether it is a valid UUID.
// Callers answer a malformed id the same way as an unknown one.
func UUIDParam(r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	return id, uuid.Validate(id) == nil
}
