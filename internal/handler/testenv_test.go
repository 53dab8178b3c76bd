package handler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"netmap-server/internal/lock"
	"netmap-server/internal/ratelimit"
	"netmap-server/internal/service"
	"netmap-server/internal/session"
	"netmap-server/internal/store"
	ws "netmap-server/internal/websocket"
)

// mockVerifier accepts exactly one identity/secret pair.
type mockVerifier struct {
	identity string
	secret   string
}

func (m *mockVerifier) Verify(_ context.Context, identity, secret string) bool {
	return identity == m.identity && secret == m.secret
}

// testEnv wires real components against a temp data directory.
type testEnv struct {
	auth     *service.AuthService
	edit     *service.EditService
	sessions *session.Store
	hub      *ws.Hub
	dataDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dataDir := t.TempDir()

	lockManager, err := lock.NewManager(filepath.Join(dataDir, "lock.json"), time.Minute)
	if err != nil {
		t.Fatalf("lock manager: %v", err)
	}

	documents, err := store.NewStore(filepath.Join(dataDir, "netmap.json"))
	if err != nil {
		t.Fatalf("document store: %v", err)
	}

	hub := ws.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	storeDone := make(chan struct{})
	hubDone := make(chan struct{})
	go func() {
		defer close(storeDone)
		_ = documents.Run(ctx)
	}()
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-storeDone
		<-hubDone
	})

	sessions := session.NewStore(time.Hour)
	limiter := ratelimit.NewLoginLimiter(ratelimit.Config{
		MaxFailures: 3,
		BaseLockout: 50 * time.Millisecond,
		MaxLevel:    2,
	})
	verifier := &mockVerifier{identity: "tiesse", secret: "correct horse"}

	return &testEnv{
		auth:     service.NewAuthService(verifier, limiter, sessions),
		edit:     service.NewEditService(lockManager, documents, 1<<20),
		sessions: sessions,
		hub:      hub,
		dataDir:  dataDir,
	}
}
