package notifications

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sis-teknik/servicedesk/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrQueueItemNotFound, Status: http.StatusNotFound, Message: "sms queue item not found"},
	{Error: ErrQueueItemSent, Status: http.StatusConflict, Message: "sms already sent"},
	{Error: ErrQueueItemClaimed, Status: http.StatusConflict, Message: "sms is being sent, try again later"},
}

// Handler handles HTTP requests for the SMS queue.
type Handler struct {
	service *Service
}

// NewHandler creates a new queue handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers queue routes (require admin).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sms-queue", func(r chi.Router) {
		r.Get("/", h.ListQueue)
		r.Get("/stats", h.GetStats)
		r.Get("/{id}", h.GetQueueItem)
		r.Post("/{id}/retry", h.RetryQueueItem)
	})
}

// ListQueue handles GET /sms-queue.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := QueueFilter{IntakeID: q.Get("intake_id")}
	if filter.IntakeID != "" && uuid.Validate(filter.IntakeID) != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid intake_id")
		return
	}

	if v := q.Get("state"); v != "" {
		state := QueueState(v)
		filter.State = &state
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	items, err := h.service.ListQueue(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// GetStats handles GET /sms-queue/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

// GetQueueItem handles GET /sms-queue/{id}.
func (h *Handler) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		h.handleError(w, r, ErrQueueItemNotFound)
		return
	}

	item, err := h.service.GetQueueItem(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// RetryQueueItem handles POST /sms-queue/{id}/retry.
func (h *Handler) RetryQueueItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		h.handleError(w, r, ErrQueueItemNotFound)
		return
	}

	item, err := h.service.Retry(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		httputil.Error(w, http.StatusBadRequest, ve.Error())
		return
	}
	httputil.HandleError(r.Context(), w, err, errorMappings)
}
