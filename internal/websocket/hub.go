// Package websocket streams analysis progress to connected browser
// clients. The Hub fans every broadcast out to all registered clients; a
// client whose send buffer is full is disconnected rather than allowed to
// stall the loop.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Message type constants shared with the frontend.
const (
	TypeConnection = "connection"
	TypeProgress   = "analysis_progress"
	TypeComplete   = "analysis_complete"
	TypeFailed     = "analysis_failed"
)

// broadcastBuffer bounds the pending-broadcast queue. Broadcast never
// blocks the caller; messages beyond the buffer are dropped and counted.
const broadcastBuffer = 64

// Envelope is the wire form of every hub message.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	quit    chan struct{}
	running bool
}

// NewHub builds a hub. Call Start before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		quit:       make(chan struct{}),
	}
}

// Start launches the hub loop. Calling Start twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count),
			)
			h.greet(client)

		case client := <-h.unregister:
			h.drop(client, "disconnected")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// greet confirms the connection to a newly registered client.
func (h *Hub) greet(client *Client) {
	payload, err := json.Marshal(Envelope{
		Type: TypeConnection,
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("connection greeting dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

// fanOut delivers one message to every client, evicting clients whose
// send buffer is full.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
			h.mu.Lock()
			h.messagesSent++
			h.mu.Unlock()
		default:
			h.drop(client, "send buffer full")
		}
	}
}

// drop removes a client from the hub and closes its send channel. Safe to
// call for a client that was already removed.
func (h *Hub) drop(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	close(client.send)
	h.logger.Info("client unregistered",
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", count),
	)
}

// Broadcast wraps data in an Envelope and queues it for delivery to every
// client. It never blocks; when the queue is full the message is dropped
// and counted.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := json.Marshal(Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("broadcast marshal failed",
			slog.String("message_type", messageType),
			slog.String("error", err.Error()),
		)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.Warn("broadcast dropped, queue full",
			slog.String("message_type", messageType))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Metrics returns a snapshot of the hub counters.
func (h *Hub) Metrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
	}
}

// Register queues a client for registration with the hub loop.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop terminates the hub loop and closes every client connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
