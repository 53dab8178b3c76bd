package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"netmap-server/internal/domain"
	"netmap-server/internal/middleware"
	"netmap-server/internal/service"
	ws "netmap-server/internal/websocket"
)

// LockHandler exposes the edit lock over HTTP.
type LockHandler struct {
	editService *service.EditService
	hub         *ws.Hub
}

func NewLockHandler(editService *service.EditService, hub *ws.Hub) *LockHandler {
	return &LockHandler{
		editService: editService,
		hub:         hub,
	}
}

// LockActionRequest carries the requested transition. The editor identity is
// taken from the session, never from the body.
type LockActionRequest struct {
	Action string `json:"action"`
}

// LockStatusResponse mirrors the lock state machine on the wire.
type LockStatusResponse struct {
	Locked           bool   `json:"locked"`
	Editor           string `json:"editor,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds,omitempty"`
}

func statusResponse(status domain.LockStatus) LockStatusResponse {
	return LockStatusResponse{
		Locked:           status.Locked,
		Editor:           status.Editor,
		RemainingSeconds: int(status.Remaining.Seconds()),
	}
}

// Status reports the current lock state. Public.
func (h *LockHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse(h.editService.LockStatus()))
}

// Action dispatches acquire/release/heartbeat for the authenticated session.
func (h *LockHandler) Action(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required","code":"AUTH_REQUIRED"}`, http.StatusUnauthorized)
		return
	}

	var req LockActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "acquire":
		h.acquire(w, session)
	case "release":
		h.release(w, session)
	case "heartbeat":
		h.heartbeat(w, session)
	default:
		http.Error(w, `{"error":"unknown lock action"}`, http.StatusBadRequest)
	}
}

func (h *LockHandler) acquire(w http.ResponseWriter, session *domain.Session) {
	status, err := h.editService.Acquire(session)
	if err != nil {
		var conflict *domain.LockConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":            "document locked by another editor",
				"code":             domain.CodeLockConflict,
				"editor":           conflict.Editor,
				"remainingSeconds": int(conflict.Remaining.Seconds()),
			})
			return
		}
		http.Error(w, `{"error":"lock unavailable","code":"STORAGE_FAILURE"}`, http.StatusInternalServerError)
		return
	}

	h.hub.Publish(ws.Event{
		Type:             ws.EventLockAcquired,
		Editor:           session.Identity,
		RemainingSeconds: int(status.Remaining.Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": statusResponse(status)})
}

func (h *LockHandler) release(w http.ResponseWriter, session *domain.Session) {
	if err := h.editService.Release(session); err != nil {
		if errors.Is(err, domain.ErrLockNotOwned) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "edit lock not owned by caller",
				"code":  domain.CodeLockNotOwned,
			})
			return
		}
		http.Error(w, `{"error":"lock release failed","code":"STORAGE_FAILURE"}`, http.StatusInternalServerError)
		return
	}

	h.hub.Publish(ws.Event{Type: ws.EventLockReleased, Editor: session.Identity})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": LockStatusResponse{}})
}

func (h *LockHandler) heartbeat(w http.ResponseWriter, session *domain.Session) {
	status, err := h.editService.Heartbeat(session)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotOwned) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "edit lock not owned by caller",
				"code":  domain.CodeLockNotOwned,
			})
			return
		}
		http.Error(w, `{"error":"lock heartbeat failed","code":"STORAGE_FAILURE"}`, http.StatusInternalServerError)
		return
	}

	h.hub.Publish(ws.Event{
		Type:             ws.EventLockRefreshed,
		Editor:           session.Identity,
		RemainingSeconds: int(status.Remaining.Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": statusResponse(status)})
}
