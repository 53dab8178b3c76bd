package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"netmap-server/internal/domain"
	"netmap-server/internal/security"
)

// DefaultIdleTimeout is the sliding idle window after which a session is
// treated as absent.
const DefaultIdleTimeout = 8 * time.Hour

// Store keeps sessions in memory. Each session is created with a fresh
// handle and CSRF token from the CSPRNG; the idle timeout slides on every
// Get, and a background sweep drops sessions nobody touches anymore.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*domain.Session
	idleTimeout time.Duration
}

// NewStore creates a session store. A non-positive timeout falls back to
// DefaultIdleTimeout.
func NewStore(idleTimeout time.Duration) *Store {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Store{
		sessions:    make(map[string]*domain.Session),
		idleTimeout: idleTimeout,
	}
}

// Create issues a new session for the identity. The returned session carries
// the handle for the cookie and the CSRF token bound to it.
func (s *Store) Create(ctx context.Context, identity, remoteAddr string) (*domain.Session, error) {
	handle, err := security.Token()
	if err != nil {
		return nil, err
	}
	csrf, err := security.Token()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &domain.Session{
		Handle:       handle,
		Identity:     identity,
		CSRFToken:    csrf,
		RemoteAddr:   remoteAddr,
		CreatedAt:    now,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[handle] = sess
	s.mu.Unlock()

	out := *sess
	return &out, nil
}

// Get validates a handle. An idle-expired session is purged and reported as
// ErrSessionNotFound; a live one has its LastActivity pushed forward.
func (s *Store) Get(ctx context.Context, handle string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[handle]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	now := time.Now()
	if now.Sub(sess.LastActivity) > s.idleTimeout {
		delete(s.sessions, handle)
		return nil, domain.ErrSessionNotFound
	}
	sess.LastActivity = now

	out := *sess
	return &out, nil
}

// Destroy removes a session. Destroying an unknown handle is a no-op.
func (s *Store) Destroy(ctx context.Context, handle string) error {
	s.mu.Lock()
	delete(s.sessions, handle)
	s.mu.Unlock()
	return nil
}

// Run sweeps idle-expired sessions at the given interval until the context
// ends, so sessions nobody touches don't linger until their next access.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep()
			if removed > 0 {
				slog.Info("session sweep", slog.Int("removed", removed))
			}
		}
	}
}

// Sweep removes all idle-expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for handle, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.idleTimeout {
			delete(s.sessions, handle)
			removed++
		}
	}
	return removed
}
