package handler

import (
	"errors"
	"io"
	"net/http"

	"netmap-server/internal/domain"
	"netmap-server/internal/middleware"
	"netmap-server/internal/service"
	ws "netmap-server/internal/websocket"
)

// DocumentHandler serves and commits the inventory document.
type DocumentHandler struct {
	editService *service.EditService
	hub         *ws.Hub
	maxBytes    int64
}

func NewDocumentHandler(editService *service.EditService, hub *ws.Hub, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{
		editService: editService,
		hub:         hub,
		maxBytes:    maxBytes,
	}
}

// Get returns the last committed document verbatim. Public.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.editService.Document())
}

// Commit replaces the document for the lock-holding session.
func (h *DocumentHandler) Commit(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required","code":"AUTH_REQUIRED"}`, http.StatusUnauthorized)
		return
	}

	// Hard cap one byte above the limit so oversized bodies are cut off
	// during the read instead of buffered whole.
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeCommitError(w, domain.ErrPayloadTooLarge)
			return
		}
		http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.editService.Commit(r.Context(), session, payload); err != nil {
		h.writeCommitError(w, err)
		return
	}

	h.hub.Publish(ws.Event{
		Type:   ws.EventDocumentCommitted,
		Editor: session.Identity,
		Bytes:  len(payload),
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bytes": len(payload)})
}

func (h *DocumentHandler) writeCommitError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrPayloadTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
			"error":    "document exceeds the size cap",
			"code":     domain.CodePayloadTooLarge,
			"maxBytes": h.maxBytes,
		})
	case errors.Is(err, domain.ErrLockInvalid):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "edit lock not held",
			"code":  domain.CodeLockInvalid,
		})
	case errors.As(err, &validationErr):
		body := map[string]any{
			"error": validationErr.Reason,
			"code":  domain.CodeValidationError,
		}
		if validationErr.Collection != "" {
			body["collection"] = validationErr.Collection
			body["index"] = validationErr.Index
		}
		if validationErr.Field != "" {
			body["field"] = validationErr.Field
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		// Storage failures carry filesystem detail; keep it out of the body.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "failed to persist document",
			"code":  domain.CodeStorageFailure,
		})
	}
}
