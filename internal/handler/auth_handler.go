package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"netmap-server/internal/domain"
	"netmap-server/internal/middleware"
	"netmap-server/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService  *service.AuthService
	secureCookie bool
}

// NewAuthHandler creates a new authentication handler. secureCookie should
// be true when the deployment terminates TLS.
func NewAuthHandler(authService *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		secureCookie: secureCookie,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	OK        bool   `json:"ok"`
	Identity  string `json:"identity"`
	CSRFToken string `json:"csrfToken"`
}

// CheckResponse represents the session read-check
type CheckResponse struct {
	Authenticated bool    `json:"authenticated"`
	Identity      *string `json:"identity"`
	CSRFToken     *string `json:"csrfToken"`
}

// Check reports whether the request carries a live session. Public; an
// unauthenticated caller gets nulls, never an error.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := CheckResponse{}

	if cookie, err := r.Cookie(middleware.SessionCookie); err == nil {
		if sess, err := h.authService.Authenticate(r.Context(), cookie.Value); err == nil {
			resp.Authenticated = true
			resp.Identity = &sess.Identity
			resp.CSRFToken = &sess.CSRFToken
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Login handles the login request
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	sess, err := h.authService.Login(r.Context(), req.Identity, req.Secret, r.RemoteAddr)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.Handle,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, LoginResponse{
		OK:        true,
		Identity:  sess.Identity,
		CSRFToken: sess.CSRFToken,
	})
}

// Logout destroys the session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required","code":"AUTH_REQUIRED"}`, http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), session.Handle); err != nil {
		http.Error(w, `{"error":"failed to logout"}`, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var rateErr *domain.RateLimitedError
	if errors.As(err, &rateErr) {
		minutes := int(math.Ceil(rateErr.RetryAfter.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())+1))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             "too many failed login attempts",
			"code":              domain.CodeRateLimited,
			"retryAfterMinutes": minutes,
		})
		return
	}

	var credErr *domain.CredentialsError
	if errors.As(err, &credErr) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "invalid credentials",
			"code":              domain.CodeInvalidCredentials,
			"attemptsRemaining": credErr.AttemptsRemaining,
		})
		return
	}

	http.Error(w, `{"error":"login failed"}`, http.StatusInternalServerError)
}
