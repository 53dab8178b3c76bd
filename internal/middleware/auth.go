package middleware

import (
	"context"
	"net/http"

	"netmap-server/internal/domain"
)

// SessionCookie is the cookie carrying the opaque session handle.
const SessionCookie = "netmap_session"

type contextKey string

const (
	IdentityKey contextKey = "identity"
	SessionKey  contextKey = "session"
)

// Auth resolves the session cookie against the store and puts the session on
// the request context. Resolution applies the sliding idle timeout, so every
// authenticated request extends the session.
func Auth(sessions domain.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				http.Error(w, `{"error":"authentication required","code":"AUTH_REQUIRED"}`, http.StatusUnauthorized)
				return
			}

			session, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired session","code":"AUTH_REQUIRED"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, session.Identity)
			ctx = context.WithValue(ctx, SessionKey, session)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetIdentity(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(IdentityKey).(string)
	return identity, ok
}

func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*domain.Session)
	return session, ok
}

func WithSession(ctx context.Context, session *domain.Session) context.Context {
	ctx = context.WithValue(ctx, IdentityKey, session.Identity)
	return context.WithValue(ctx, SessionKey, session)
}
