package service

import (
	"context"
	"errors"
	"log/slog"

	"netmap-server/internal/domain"
	"netmap-server/internal/observability"
	"netmap-server/internal/ratelimit"
)

// CredentialVerifier checks one identity/secret pair. Implementations must
// be constant-time with respect to both arguments.
type CredentialVerifier interface {
	Verify(ctx context.Context, identity, secret string) bool
}

// AuthService runs the login pipeline: lockout check, credential
// verification, session issue. Failed attempts feed the rate limiter keyed
// by (client address, identity).
type AuthService struct {
	verifier CredentialVerifier
	limiter  *ratelimit.LoginLimiter
	sessions domain.SessionStore
}

func NewAuthService(verifier CredentialVerifier, limiter *ratelimit.LoginLimiter, sessions domain.SessionStore) *AuthService {
	return &AuthService{
		verifier: verifier,
		limiter:  limiter,
		sessions: sessions,
	}
}

// Login authenticates the pair and issues a session. The lockout gate runs
// first, so during an active lockout even correct credentials are rejected
// with *domain.RateLimitedError.
func (s *AuthService) Login(ctx context.Context, identity, secret, remoteAddr string) (*domain.Session, error) {
	key := ratelimit.Key(remoteAddr, identity)

	if locked, retryAfter := s.limiter.IsLocked(key); locked {
		observability.LoginAttemptsTotal.WithLabelValues("locked_out").Inc()
		slog.Warn("login rejected by lockout",
			slog.String("identity", identity),
			slog.String("remote_addr", remoteAddr),
			slog.Duration("retry_after", retryAfter))
		return nil, &domain.RateLimitedError{RetryAfter: retryAfter}
	}

	if !s.verifier.Verify(ctx, identity, secret) {
		s.limiter.RecordFailure(key)
		observability.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		slog.Warn("login failed",
			slog.String("identity", identity),
			slog.String("remote_addr", remoteAddr))
		return nil, &domain.CredentialsError{
			AttemptsRemaining: s.limiter.AttemptsRemaining(key),
		}
	}

	s.limiter.RecordSuccess(key)

	sess, err := s.sessions.Create(ctx, identity, remoteAddr)
	if err != nil {
		return nil, err
	}

	observability.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	slog.Info("login succeeded",
		slog.String("identity", identity),
		slog.String("remote_addr", remoteAddr))
	return sess, nil
}

// Logout destroys the session behind the handle.
func (s *AuthService) Logout(ctx context.Context, handle string) error {
	return s.sessions.Destroy(ctx, handle)
}

// Authenticate resolves a session handle, applying the sliding idle timeout.
func (s *AuthService) Authenticate(ctx context.Context, handle string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}
