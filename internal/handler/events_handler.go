package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"netmap-server/internal/service"
	ws "netmap-server/internal/websocket"

	"github.com/gorilla/websocket"
)

// EventsHandler upgrades clients onto the event stream. The stream is
// read-only and public: viewers watch lock and commit activity without
// logging in.
type EventsHandler struct {
	hub         *ws.Hub
	editService *service.EditService
	upgrader    websocket.Upgrader
}

func NewEventsHandler(hub *ws.Hub, editService *service.EditService, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		hub:         hub,
		editService: editService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || candidate == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnection upgrades the request and subscribes the client.
func (h *EventsHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register(client)

	// Seed the new subscriber with the current lock state so it does not
	// have to wait for the next transition.
	status := h.editService.LockStatus()
	snapshot := ws.Event{Type: ws.EventLockReleased, At: time.Now()}
	if status.Locked {
		snapshot = ws.Event{
			Type:             ws.EventLockAcquired,
			Editor:           status.Editor,
			RemainingSeconds: int(status.Remaining.Seconds()),
			At:               time.Now(),
		}
	}
	if raw, err := json.Marshal(snapshot); err == nil {
		client.Send(raw)
	}

	go client.WritePump()
	go client.ReadPump()
}
