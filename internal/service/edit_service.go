package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"netmap-server/internal/domain"
	"netmap-server/internal/lock"
	"netmap-server/internal/observability"
	"netmap-server/internal/store"
)

// EditService coordinates the edit lock and the persistence gate. The lock's
// editor identity is always derived from the authenticated session; clients
// never supply it.
type EditService struct {
	lock     *lock.Manager
	store    *store.Store
	maxBytes int64
}

func NewEditService(lockManager *lock.Manager, documents *store.Store, maxBytes int64) *EditService {
	return &EditService{
		lock:     lockManager,
		store:    documents,
		maxBytes: maxBytes,
	}
}

// LockStatus reports the current lock state. Public: no session required.
func (s *EditService) LockStatus() domain.LockStatus {
	return s.lock.Status()
}

// Acquire takes the edit lock for the session's identity.
func (s *EditService) Acquire(sess *domain.Session) (domain.LockStatus, error) {
	status, err := s.lock.Acquire(sess.Identity)
	if err != nil {
		observability.LockRequestsTotal.WithLabelValues("acquire", outcome(err)).Inc()
		return status, err
	}
	observability.LockRequestsTotal.WithLabelValues("acquire", "ok").Inc()
	slog.Info("edit lock acquired", slog.String("editor", sess.Identity))
	return status, nil
}

// Heartbeat refreshes the session's hold on the lock.
func (s *EditService) Heartbeat(sess *domain.Session) (domain.LockStatus, error) {
	status, err := s.lock.Heartbeat(sess.Identity)
	if err != nil {
		observability.LockRequestsTotal.WithLabelValues("heartbeat", outcome(err)).Inc()
		return status, err
	}
	observability.LockRequestsTotal.WithLabelValues("heartbeat", "ok").Inc()
	return status, nil
}

// Release frees the lock held by the session's identity.
func (s *EditService) Release(sess *domain.Session) error {
	if err := s.lock.Release(sess.Identity); err != nil {
		observability.LockRequestsTotal.WithLabelValues("release", outcome(err)).Inc()
		return err
	}
	observability.LockRequestsTotal.WithLabelValues("release", "ok").Inc()
	slog.Info("edit lock released", slog.String("editor", sess.Identity))
	return nil
}

// Document returns the last committed document bytes. Public.
func (s *EditService) Document() []byte {
	return s.store.Read()
}

// Commit replaces the document. The session must hold the edit lock and the
// payload must pass the size cap and structural validation; on any rejection
// the prior committed document is untouched.
func (s *EditService) Commit(ctx context.Context, sess *domain.Session, payload []byte) error {
	if int64(len(payload)) > s.maxBytes {
		observability.DocumentCommitsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %d bytes exceeds cap of %d", domain.ErrPayloadTooLarge, len(payload), s.maxBytes)
	}

	if !s.lock.HeldBy(sess.Identity) {
		observability.DocumentCommitsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("document write without valid lock", slog.String("identity", sess.Identity))
		return domain.ErrLockInvalid
	}

	if err := domain.ValidateDocument(payload); err != nil {
		observability.DocumentCommitsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("document rejected by validation",
			slog.String("identity", sess.Identity),
			slog.String("reason", err.Error()))
		return err
	}

	if err := s.store.Commit(ctx, payload); err != nil {
		observability.DocumentCommitsTotal.WithLabelValues("storage_error").Inc()
		return err
	}

	slog.Info("document committed",
		slog.String("identity", sess.Identity),
		slog.Int("bytes", len(payload)))
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var conflict *domain.LockConflictError
	if errors.As(err, &conflict) {
		return "conflict"
	}
	return "not_owned"
}
