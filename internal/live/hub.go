// Package live pushes "something changed" pulses to connected browsers.
package live

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
)

// Hub fans a payload-free pulse out to every subscriber.
//
// Publish never blocks. Each subscriber has a single-slot buffer, so a burst
// of publishes while a listener is busy collapses into one pending pulse.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan struct{}
	nextID uint64
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan struct{})}
}

// Publish signals all current subscribers.
func (h *Hub) Publish() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
			delivered++
		default:
		}
	}
	recordPublish(delivered, len(h.subs)-delivered)
}

// Subscribe registers a listener. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Close closes every subscriber channel so live connections wind down.
// Later subscriptions receive an already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// PublishOnMutation publishes once after every successful
// POST, PUT, PATCH or DELETE handled by next.
func (h *Hub) PublishOnMutation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutation(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Status is 0 when the handler wrote nothing, which net/http sends as 200.
		if ww.Status() < http.StatusBadRequest {
			h.Publish()
		}
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
