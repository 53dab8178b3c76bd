package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"netmap-server/internal/domain"
	"netmap-server/internal/middleware"
)

const validDocument = `{
  "devices": [
    {"id": 1, "name": "core-switch", "room": 10},
    {"id": 2, "name": "ap-floor2"}
  ],
  "connections": [
    {"from": 1, "to": 2, "kind": "fiber"}
  ],
  "rooms": [
    {"id": 10, "name": "server room"}
  ]
}`

func commitRequest(t *testing.T, sess *domain.Session, body string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/document", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req = req.WithContext(middleware.WithSession(req.Context(), sess))
	}
	return req
}

// acquireLock takes the edit lock directly through the service layer.
func acquireLock(t *testing.T, env *testEnv, sess *domain.Session) {
	t.Helper()

	if _, err := env.edit.Acquire(sess); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
}

func TestDocumentHandler_Get_DefaultDocument(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDocumentHandler(env.edit, env.hub, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/document", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), domain.DefaultDocument()) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestDocumentHandler_CommitThenGetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDocumentHandler(env.edit, env.hub, 1<<20)
	sess := newSession(t, env, "tiesse")
	acquireLock(t, env, sess)

	w := httptest.NewRecorder()
	handler.Commit(w, commitRequest(t, sess, validDocument))

	if w.Code != http.StatusOK {
		t.Fatalf("commit: expected status %d, got %d, body: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("response = %+v", resp)
	}

	// The served document must be byte-identical to what was submitted,
	// unknown fields and formatting included.
	w = httptest.NewRecorder()
	handler.Get(w, httptest.NewRequest(http.MethodGet, "/api/v1/document", nil))
	if w.Body.String() != validDocument {
		t.Errorf("served document differs from committed payload:\n%s", w.Body.String())
	}
}

func TestDocumentHandler_Commit_WithoutLock(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDocumentHandler(env.edit, env.hub, 1<<20)
	sess := newSession(t, env, "tiesse")

	w := httptest.NewRecorder()
	handler.Commit(w, commitRequest(t, sess, validDocument))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["code"] != "LOCK_INVALID" {
		t.Errorf("code = %v", resp["code"])
	}
}

func TestDocumentHandler_Commit_ValidationFailure(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDocumentHandler(env.edit, env.hub, 1<<20)
	sess := newSession(t, env, "tiesse")
	acquireLock(t, env, sess)

	// Connection references device 99, which does not exist.
	body := `{"devices":[{"id":1}],"connections":[{"from":1,"to":99}],"rooms":[]}`

	w := httptest.NewRecorder()
	handler.Commit(w, commitRequest(t, sess, body))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["code"] != "VALIDATION_ERROR" {
		t.Errorf("code = %v", resp["code"])
	}
	if resp["collection"] != "connections" || resp["index"] != float64(0) || resp["field"] != "to" {
		t.Errorf("location = %v/%v/%v", resp["collection"], resp["index"], resp["field"])
	}

	// A rejected commit must not disturb the committed document.
	if !bytes.Equal(env.edit.Document(), domain.DefaultDocument()) {
		t.Error("committed document changed after a rejected payload")
	}
}

func TestDocumentHandler_Commit_PayloadTooLarge(t *testing.T) {
	env := newTestEnv(t)
	sess := newSession(t, env, "tiesse")
	acquireLock(t, env, sess)

	handler := NewDocumentHandler(env.edit, env.hub, 256)

	// Padding pushes the body over the cap; the size gate must fire before
	// any lock or validation checks touch the payload.
	body := `{"devices":[],"connections":[],"rooms":[],"pad":"` + strings.Repeat("x", 300) + `"}`

	w := httptest.NewRecorder()
	handler.Commit(w, commitRequest(t, sess, body))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["code"] != "PAYLOAD_TOO_LARGE" {
		t.Errorf("code = %v", resp["code"])
	}
}

func TestDocumentHandler_Commit_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDocumentHandler(env.edit, env.hub, 1<<20)
	sess := newSession(t, env, "tiesse")
	acquireLock(t, env, sess)

	w := httptest.NewRecorder()
	handler.Commit(w, commitRequest(t, sess, `{"devices": [`))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
}
