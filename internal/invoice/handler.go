package invoice

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sis-teknik/servicedesk/internal/pkg/httputil"
)

// Room for the JSON envelope on top of the encoded image.
const maxBodyOverhead = 1 << 20

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotFound, Status: http.StatusNotFound},
	{Error: ErrNoInvoice, Status: http.StatusNotFound},
	{Error: ErrImageRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidImage, Status: http.StatusBadRequest},
	{Error: ErrImageTooLarge, Status: http.StatusRequestEntityTooLarge},
	{Error: ErrCaptchaRequired, Status: http.StatusBadRequest},
	{Error: ErrCaptchaInvalid, Status: http.StatusUnauthorized},
	{Error: ErrCaptchaUnavailable, Status: http.StatusBadGateway},
	{Error: ErrTooManyUploads, Status: http.StatusTooManyRequests},
}

// Handler handles HTTP requests for invoices.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new invoice handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers the customer upload route.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/invoices/{id}", h.Upload)
}

// RegisterRoutes registers staff routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/invoices/{id}", h.Get)
}

// UploadRequest represents the public upload body.
type UploadRequest struct {
	Image          string `json:"image" validate:"required"`
	TurnstileToken string `json:"turnstile_token"`
}

// Upload handles POST /invoices/{id}.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrNotFound, errorMappings)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.service.maxBytes)*4/3+maxBodyOverhead)

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.HandleError(r.Context(), w, ErrImageTooLarge, errorMappings)
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	_, err := h.service.Upload(r.Context(), id, UploadInput{
		Image:        req.Image,
		CaptchaToken: req.TurnstileToken,
		RemoteIP:     remoteIP(r),
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /invoices/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrNotFound, errorMappings)
		return
	}

	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, inv)
}

// remoteIP strips the port; middleware.RealIP has already applied
// forwarding headers.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
