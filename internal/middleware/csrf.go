package middleware

import (
	"crypto/hmac"
	"log/slog"
	"net/http"
)

// CSRF validates the per-session token on state-changing requests. It
// implements the Synchronizer Token Pattern: the token lives server-side on
// the session and the client echoes it back in a header or form field.
//
// Validation flow:
// 1. Skip for safe HTTP methods (GET, HEAD, OPTIONS)
// 2. Read the session from context (set by Auth)
// 3. Extract the submitted token (header or form field)
// 4. Compare against the session's token in constant time
// 5. Reject with 403 and code CSRF_INVALID on any mismatch
//
// Token sources (checked in order):
// - Header: X-CSRF-Token
// - Header: X-XSRF-Token (alternate)
// - Form field: csrf_token
func CSRF() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			session, ok := GetSession(r.Context())
			if !ok {
				// Auth should have rejected already; never let an
				// unauthenticated state change through.
				http.Error(w, `{"error":"authentication required","code":"AUTH_REQUIRED"}`, http.StatusUnauthorized)
				return
			}

			submitted := extractCSRFToken(r)
			if submitted == "" {
				logCSRFFailure(r, session.Identity, "missing token")
				http.Error(w, `{"error":"invalid csrf token","code":"CSRF_INVALID"}`, http.StatusForbidden)
				return
			}

			if !hmac.Equal([]byte(session.CSRFToken), []byte(submitted)) {
				logCSRFFailure(r, session.Identity, "invalid token")
				http.Error(w, `{"error":"invalid csrf token","code":"CSRF_INVALID"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod returns true for idempotent methods that don't change state
// and therefore don't require a CSRF token.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// extractCSRFToken pulls the token from the request, headers first so JSON
// API calls don't pay the form-parse cost.
func extractCSRFToken(r *http.Request) string {
	if token := r.Header.Get("X-CSRF-Token"); token != "" {
		return token
	}
	if token := r.Header.Get("X-XSRF-Token"); token != "" {
		return token
	}
	return r.FormValue("csrf_token")
}

// logCSRFFailure records a security event for monitoring.
func logCSRFFailure(r *http.Request, identity, reason string) {
	slog.Warn("CSRF validation failed",
		slog.String("identity", identity),
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.RequestURI),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
