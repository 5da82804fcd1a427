package live

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/sis-teknik/servicedesk/internal/pkg/ctxlog"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 512
)

// Frame is the only message shape sent to listeners.
type Frame struct {
	Type string `json:"type"`
}

var (
	frameConnected = Frame{Type: "connected"}
	frameRefresh   = Frame{Type: "refresh"}
	framePong      = Frame{Type: "pong"}
)

// Handler serves the live-update websocket.
type Handler struct {
	hub            *Hub
	originPatterns []string
}

// NewHandler creates a new live handler. originPatterns follows
// websocket.AcceptOptions; an empty list allows same-origin only.
func NewHandler(hub *Hub, originPatterns []string) *Handler {
	return &Handler{hub: hub, originPatterns: originPatterns}
}

// RegisterRoutes registers the live endpoint (public).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live", h.ServeWS)
}

// ServeWS handles GET /live.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := ctxlog.FromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(readLimit)

	pulses, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	listeners.Inc()
	defer listeners.Dec()

	// The connection outlives request-scoped deadlines; readLoop ends it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	if err := write(ctx, conn, frameConnected); err != nil {
		return
	}

	go readLoop(ctx, cancel, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-pulses:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ctx, conn, frameRefresh); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					log.Debug("live write failed", "error", err)
				}
				return
			}
		}
	}
}

// readLoop answers text "ping" frames and cancels ctx once the peer goes away.
// Control frames are handled inside conn.Read.
func readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ == websocket.MessageText && strings.TrimSpace(string(data)) == "ping" {
			if err := write(ctx, conn, framePong); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}
