package domain

import (
	"errors"
	"fmt"
	"time"
)

// Machine-readable reason codes returned to clients on rejected requests.
const (
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeCSRFInvalid        = "CSRF_INVALID"
	CodeLockConflict       = "LOCK_CONFLICT"
	CodeLockNotOwned       = "LOCK_NOT_OWNED"
	CodeLockInvalid        = "LOCK_INVALID"
	CodeValidationError    = "VALIDATION_ERROR"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeStorageFailure     = "STORAGE_FAILURE"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many failed login attempts")
	ErrCSRFInvalid        = errors.New("invalid csrf token")
	ErrLockNotOwned       = errors.New("edit lock not owned by caller")
	ErrLockInvalid        = errors.New("edit lock not held")
	ErrPayloadTooLarge    = errors.New("document exceeds size limit")
	ErrStorageFailure     = errors.New("storage failure")
)

// RateLimitedError reports an active login lockout and how long the
// caller should wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many failed login attempts, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// CredentialsError is returned on a failed login. It deliberately does not
// distinguish between an unknown identity and a wrong secret.
type CredentialsError struct {
	AttemptsRemaining int
}

func (e *CredentialsError) Error() string { return "invalid credentials" }

func (e *CredentialsError) Unwrap() error { return ErrInvalidCredentials }

// LockConflictError reports that another editor currently holds the lock.
type LockConflictError struct {
	Editor    string
	Remaining time.Duration
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("document locked by %q for another %s", e.Editor, e.Remaining)
}

// ValidationError describes a structural defect in a submitted document,
// pointing at the offending collection entry.
type ValidationError struct {
	Collection string
	Index      int
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.Collection == "" {
		return e.Reason
	}
	if e.Field == "" {
		return fmt.Sprintf("%s[%d]: %s", e.Collection, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s[%d].%s: %s", e.Collection, e.Index, e.Field, e.Reason)
}
