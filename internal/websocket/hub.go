package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"netmap-server/internal/observability"
)

// Event is pushed to every connected client when the lock or the document
// changes, so open floor-plan views can refresh without polling.
type Event struct {
	Type             string    `json:"type"`
	Editor           string    `json:"editor,omitempty"`
	RemainingSeconds int       `json:"remainingSeconds,omitempty"`
	Bytes            int       `json:"bytes,omitempty"`
	At               time.Time `json:"at"`
}

// Event types.
const (
	EventLockAcquired      = "lock_acquired"
	EventLockRefreshed     = "lock_refreshed"
	EventLockReleased      = "lock_released"
	EventLockExpired       = "lock_expired"
	EventDocumentCommitted = "document_committed"
)

// Hub maintains the set of event-stream clients and fans events out to all
// of them. There is one shared document, so there is one flat client set.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("event hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			observability.EventClientsActive.Inc()
			slog.Debug("event client registered", slog.String("client_id", client.id))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, drop the connection
					h.closeClientSend(client)
					delete(h.clients, client)
					observability.EventClientsActive.Dec()
				}
			}
		}
	}
}

// Publish broadcasts an event to all connected clients. Marshal failures
// are logged and dropped; the event stream is advisory, never load-bearing.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- data:
		observability.EventsBroadcastTotal.WithLabelValues(event.Type).Inc()
	case <-h.done:
	}
}

// Register registers a client with the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// unregisterClient safely removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.closeClientSend(client)
		observability.EventClientsActive.Dec()
		slog.Debug("event client unregistered", slog.String("client_id", client.id))
	}
}

// closeClientSend safely closes a client's send channel
func (h *Hub) closeClientSend(client *Client) {
	select {
	case <-client.send:
		// Channel already closed
	default:
		close(client.send)
	}
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	close(h.done)

	for client := range h.clients {
		h.closeClientSend(client)
	}

	slog.Info("event hub shutdown complete")
}
