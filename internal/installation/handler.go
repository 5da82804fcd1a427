package installation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sis-teknik/servicedesk/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrInstallationNotFound, Status: http.StatusNotFound},
	{Error: ErrAlreadyClosed, Status: http.StatusConflict},
	{Error: ErrMountTypeRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidMountType, Status: http.StatusBadRequest},
	{Error: ErrPhotoRequired, Status: http.StatusBadRequest},
	{Error: ErrNothingToUpdate, Status: http.StatusBadRequest},
	{Error: ErrNoAssignees, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the installation module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new installation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers routes open to the field crew.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/installations", h.List)
	r.Get("/installations/{id}", h.Get)
	r.Post("/installations/{id}/close", h.Close)
}

// RegisterManagementRoutes registers routes that require technician role.
func (h *Handler) RegisterManagementRoutes(r chi.Router) {
	r.Post("/installations", h.Create)
	r.Patch("/installations/{id}", h.Update)
	r.Delete("/installations/{id}", h.Delete)
}

// CreateRequest represents request body for registering a job.
type CreateRequest struct {
	WorkOrderNo  string   `json:"work_order_no" validate:"required,max=64"`
	CustomerName string   `json:"customer_name" validate:"required,max=200"`
	Model        string   `json:"model" validate:"max=200"`
	Phone        string   `json:"phone" validate:"required,max=32"`
	Address      string   `json:"address" validate:"required,max=1000"`
	ServiceType  string   `json:"service_type" validate:"max=100"`
	Assignees    []string `json:"assignees" validate:"required,min=1,dive,required,max=64"`
}

// UpdateRequest represents request body for a partial update.
type UpdateRequest struct {
	WorkOrderNo  *string   `json:"work_order_no" validate:"omitempty,max=64"`
	CustomerName *string   `json:"customer_name" validate:"omitempty,max=200"`
	Model        *string   `json:"model" validate:"omitempty,max=200"`
	Phone        *string   `json:"phone" validate:"omitempty,max=32"`
	Address      *string   `json:"address" validate:"omitempty,max=1000"`
	ServiceType  *string   `json:"service_type" validate:"omitempty,max=100"`
	Assignees    *[]string `json:"assignees" validate:"omitempty,min=1"`
}

// CloseRequest represents request body for closing a job.
type CloseRequest struct {
	MountType string   `json:"mount_type"`
	PhotoURLs []string `json:"photo_urls" validate:"dive,max=2048"`
}

func viewerFrom(r *http.Request) Viewer {
	return Viewer{
		Username: httputil.GetUsername(r.Context()),
		Role:     httputil.GetRole(r.Context()),
	}
}

// Create handles POST /installations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	inst, err := h.service.Create(r.Context(), CreateInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, inst)
}

// Get handles GET /installations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrInstallationNotFound, errorMappings)
		return
	}

	inst, err := h.service.Get(r.Context(), viewerFrom(r), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, inst)
}

// List handles GET /installations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Assignee: r.URL.Query().Get("assignee")}

	if c := r.URL.Query().Get("closed"); c != "" {
		closed, err := strconv.ParseBool(c)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "closed must be true or false")
			return
		}
		filter.Closed = &closed
	}

	items, err := h.service.List(r.Context(), viewerFrom(r), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// Update handles PATCH /installations/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrInstallationNotFound, errorMappings)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	inst, err := h.service.Update(r.Context(), id, UpdateInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, inst)
}

// Close handles POST /installations/{id}/close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrInstallationNotFound, errorMappings)
		return
	}

	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	inst, err := h.service.Close(r.Context(), viewerFrom(r), id, CloseInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, inst)
}

// Delete handles DELETE /installations/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrInstallationNotFound, errorMappings)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
