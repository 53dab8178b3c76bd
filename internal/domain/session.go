package domain

import (
	"context"
	"time"
)

// Session represents an authenticated browser session. The handle is the
// opaque value stored in the session cookie; the CSRF token is bound to the
// session for its whole lifetime and rotates only on re-login.
type Session struct {
	Handle       string
	Identity     string
	CSRFToken    string
	RemoteAddr   string
	CreatedAt    time.Time
	LastActivity time.Time
}

// SessionStore issues and validates session handles. Get enforces the idle
// timeout as a side effect: an expired session is purged and reported as
// ErrSessionNotFound, a live one has its LastActivity refreshed.
type SessionStore interface {
	Create(ctx context.Context, identity, remoteAddr string) (*Session, error)
	Get(ctx context.Context, handle string) (*Session, error)
	Destroy(ctx context.Context, handle string) error
}
