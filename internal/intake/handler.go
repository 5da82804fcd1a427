package intake

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/pkg/httputil"
)

// List bounds for GET /intakes.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIntakeNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrNothingToUpdate, Status: http.StatusBadRequest},
	{Error: ErrInvalidPhone, Status: http.StatusBadRequest},
	{Error: ErrSMSDeliveryFailed, Status: http.StatusBadGateway},
	{Error: ErrNotificationsDisabled, Status: http.StatusServiceUnavailable},
}

// Handler handles HTTP requests for the intake module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new intake handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers intake routes for workshop staff.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/intakes", h.ListIntakes)
	r.Post("/intakes", h.CreateIntake)
	r.Get("/intakes/stats", h.GetStats)
	r.Get("/intakes/{id}", h.GetIntake)
	r.Patch("/intakes/{id}", h.UpdateIntake)
	r.Post("/intakes/{id}/resend-sms", h.ResendSMS)
}

// RegisterAdminRoutes registers intake routes that require admin role.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/intakes/{id}", h.DeleteIntake)
}

// CreateIntakeRequest represents request body for checking in a device.
type CreateIntakeRequest struct {
	CustomerName      string `json:"customer_name" validate:"required,max=200"`
	Phone             string `json:"phone" validate:"required,max=32"`
	DeviceModel       string `json:"device_model" validate:"required,max=200"`
	ServiceType       string `json:"service_type" validate:"max=100"`
	Accessories       string `json:"accessories" validate:"max=500"`
	Complaint         string `json:"complaint" validate:"max=2000"`
	Notes             string `json:"notes" validate:"max=2000"`
	TechnicianNote    string `json:"technician_note" validate:"max=2000"`
	RepairSlipNo      string `json:"repair_slip_no" validate:"max=64"`
	Status            string `json:"status"`
	PriceQuotePending bool   `json:"price_quote_pending"`
}

// UpdateIntakeRequest represents request body for a partial update.
// Status accepts a numeric code or a workshop label.
type UpdateIntakeRequest struct {
	CustomerName      *string `json:"customer_name" validate:"omitempty,max=200"`
	Phone             *string `json:"phone" validate:"omitempty,max=32"`
	DeviceModel       *string `json:"device_model" validate:"omitempty,max=200"`
	ServiceType       *string `json:"service_type" validate:"omitempty,max=100"`
	Accessories       *string `json:"accessories" validate:"omitempty,max=500"`
	Complaint         *string `json:"complaint" validate:"omitempty,max=2000"`
	Notes             *string `json:"notes" validate:"omitempty,max=2000"`
	TechnicianNote    *string `json:"technician_note" validate:"omitempty,max=2000"`
	RepairSlipNo      *string `json:"repair_slip_no" validate:"omitempty,max=64"`
	Status            *string `json:"status"`
	PriceQuotePending *bool   `json:"price_quote_pending"`
}

// UpdateIntakeResponse is returned by PATCH /intakes/{id}.
type UpdateIntakeResponse struct {
	Intake     *domain.Intake `json:"intake"`
	Transition *Transition    `json:"transition"`
}

// CreateIntake handles POST /intakes.
func (h *Handler) CreateIntake(w http.ResponseWriter, r *http.Request) {
	var req CreateIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	intake, err := h.service.CreateIntake(r.Context(), CreateIntakeInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, intake)
}

// GetIntake handles GET /intakes/{id}.
func (h *Handler) GetIntake(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrIntakeNotFound, errorMappings)
		return
	}

	intake, err := h.service.GetIntake(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, intake)
}

// ListIntakes handles GET /intakes.
func (h *Handler) ListIntakes(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search: r.URL.Query().Get("q"),
		Limit:  DefaultListLimit,
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := domain.ParseIntakeStatus(s)
		if !ok {
			httputil.Error(w, http.StatusBadRequest, ErrInvalidStatus.Error())
			return
		}
		filter.Status = &status
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > MaxListLimit {
			parsed = MaxListLimit
		}
		filter.Limit = parsed
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = parsed
	}

	intakes, err := h.service.ListIntakes(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, intakes)
}

// GetStats handles GET /intakes/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

// UpdateIntake handles PATCH /intakes/{id}.
func (h *Handler) UpdateIntake(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrIntakeNotFound, errorMappings)
		return
	}

	var req UpdateIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	intake, transition, err := h.service.UpdateIntake(r.Context(), id, UpdateIntakeInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, UpdateIntakeResponse{Intake: intake, Transition: transition})
}

// DeleteIntake handles DELETE /intakes/{id}.
func (h *Handler) DeleteIntake(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrIntakeNotFound, errorMappings)
		return
	}

	if err := h.service.DeleteIntake(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResendSMS handles POST /intakes/{id}/resend-sms.
func (h *Handler) ResendSMS(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.HandleError(r.Context(), w, ErrIntakeNotFound, errorMappings)
		return
	}

	message, err := h.service.ResendWelcome(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"sent":    true,
		"message": message,
	})
}
