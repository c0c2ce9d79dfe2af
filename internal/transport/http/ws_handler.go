package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"presalecli/internal/config"
	"presalecli/internal/middleware"
	ws "presalecli/internal/websocket"
)

// WSHandler upgrades HTTP connections and hands them to the hub.
type WSHandler struct {
	hub         *ws.Hub
	security    config.SecurityConfig
	development bool
	logger      *slog.Logger
}

// NewWSHandler creates a new websocket upgrade handler.
func NewWSHandler(hub *ws.Hub, security config.SecurityConfig, development bool, logger *slog.Logger) *WSHandler {
	if hub == nil {
		panic("hub cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WSHandler{
		hub:         hub,
		security:    security,
		development: development,
		logger:      logger.With(slog.String("handler", "websocket")),
	}
}

// Handle handles GET /ws.
func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Same-origin and non-browser clients send no Origin header.
			if origin == "" {
				return true
			}

			if h.development {
				return true
			}

			for _, allowed := range h.security.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}

			h.logger.WarnContext(ctx, "websocket origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", h.security.AllowedOrigins))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.ErrorContext(ctx, "websocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader.Error already wrote the response.
		return
	}

	h.logger.InfoContext(ctx, "websocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	ws.ServeWS(h.hub, conn, h.logger)
}
