package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "netmap-server/internal/websocket"

	"github.com/gorilla/websocket"
)

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"https://netmap.example"}, "", true},
		{"exact match", []string{"https://netmap.example"}, "https://netmap.example", true},
		{"wildcard", []string{"*"}, "https://anywhere.example", true},
		{"mismatch", []string{"https://netmap.example"}, "https://evil.example", false},
		{"scheme mismatch", []string{"https://netmap.example"}, "http://netmap.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := originChecker(tt.allowed)
			req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := check(req); got != tt.want {
				t.Errorf("originChecker(%v) with origin %q = %v, want %v",
					tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}

func TestEventsHandler_RejectsDisallowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEventsHandler(env.hub, env.edit, []string{"https://netmap.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()

	handler.HandleConnection(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestEventsHandler_SnapshotAndBroadcast(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEventsHandler(env.hub, env.edit, []string{"*"})

	sess := newSession(t, env, "tiesse")
	if _, err := env.edit.Acquire(sess); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEvent := func() ws.Event {
		t.Helper()
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read message: %v", err)
		}
		var event ws.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return event
	}

	// First frame is the snapshot of the lock already held at connect time.
	snapshot := readEvent()
	if snapshot.Type != ws.EventLockAcquired || snapshot.Editor != "tiesse" {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	// The registration races the Publish below; give the hub a beat.
	time.Sleep(50 * time.Millisecond)

	env.hub.Publish(ws.Event{Type: ws.EventLockReleased, Editor: "tiesse"})

	released := readEvent()
	if released.Type != ws.EventLockReleased {
		t.Errorf("broadcast event = %+v", released)
	}
}
