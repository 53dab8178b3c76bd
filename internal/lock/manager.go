package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"netmap-server/internal/domain"
)

// DefaultTTL is how long a lock stays valid without a heartbeat.
const DefaultTTL = 5 * time.Minute

// record is the lock state persisted beside the data file. A record whose
// age exceeds the TTL reads as Free; there is no cleanup timer.
type record struct {
	Editor    string    `json:"editor"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager is the cooperative single-editor lock over the whole document.
// All transitions happen under one mutex so two simultaneous acquire
// attempts can never both succeed, and every transition is persisted before
// it is reported, so a restart sees the same lock state.
type Manager struct {
	mu   sync.Mutex
	path string
	ttl  time.Duration
	rec  *record // nil when Free
}

// NewManager loads any persisted lock record from path. A malformed record
// is discarded (the lock reads as Free), not treated as fatal.
func NewManager(path string, ttl time.Duration) (*Manager, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{path: path, ttl: ttl}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("read lock record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Editor == "" {
		slog.Warn("discarding malformed lock record", slog.String("path", path))
		_ = os.Remove(path)
		return m, nil
	}
	m.rec = &rec
	return m, nil
}

// Acquire takes the lock for editor. It succeeds when the lock is Free, held
// by the same editor (re-acquire refreshes the timestamp), or held but
// expired. A live conflicting holder yields a *domain.LockConflictError.
func (m *Manager) Acquire(editor string) (domain.LockStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.rec != nil && m.rec.Editor != editor {
		if remaining := m.remaining(now); remaining > 0 {
			return m.status(now), &domain.LockConflictError{
				Editor:    m.rec.Editor,
				Remaining: remaining,
			}
		}
	}

	m.rec = &record{Editor: editor, Timestamp: now}
	if err := m.persist(); err != nil {
		m.rec = nil
		return domain.LockStatus{}, err
	}
	return m.status(now), nil
}

// Heartbeat refreshes the holder's timestamp. Only the current, unexpired
// holder may heartbeat; anyone else gets ErrLockNotOwned.
func (m *Manager) Heartbeat(editor string) (domain.LockStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.rec == nil || m.rec.Editor != editor || m.remaining(now) <= 0 {
		return m.status(now), domain.ErrLockNotOwned
	}

	m.rec.Timestamp = now
	if err := m.persist(); err != nil {
		return domain.LockStatus{}, err
	}
	return m.status(now), nil
}

// Release frees the lock. Only the holder may release; releasing an expired
// or absent lock held by nobody is treated as already Free.
func (m *Manager) Release(editor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.rec == nil || m.remaining(now) <= 0 {
		m.rec = nil
		_ = os.Remove(m.path)
		return nil
	}
	if m.rec.Editor != editor {
		return domain.ErrLockNotOwned
	}

	m.rec = nil
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing lock record", domain.ErrStorageFailure)
	}
	return nil
}

// Status reports the current lock state, applying lazy expiry.
func (m *Manager) Status() domain.LockStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status(time.Now())
}

// HeldBy reports whether editor currently holds a valid lock.
func (m *Manager) HeldBy(editor string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec != nil && m.rec.Editor == editor && m.remaining(time.Now()) > 0
}

// Watch polls for idle expiry until the context ends. When a held lock runs
// out its TTL without being released, the record is cleared and onExpire is
// called with the stale editor. Request paths still expire lazily; the
// watcher only exists so observers hear about locks nobody touches again.
func (m *Manager) Watch(ctx context.Context, interval time.Duration, onExpire func(editor string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if editor, expired := m.reapExpired(); expired {
				slog.Info("edit lock expired", slog.String("editor", editor))
				onExpire(editor)
			}
		}
	}
}

// reapExpired clears a held-but-expired record and reports its editor.
func (m *Manager) reapExpired() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rec == nil || m.remaining(time.Now()) > 0 {
		return "", false
	}

	editor := m.rec.Editor
	m.rec = nil
	_ = os.Remove(m.path)
	return editor, true
}

// remaining returns how much TTL the current record has left, or zero when
// Free or expired. Callers hold m.mu.
func (m *Manager) remaining(now time.Time) time.Duration {
	if m.rec == nil {
		return 0
	}
	remaining := m.ttl - now.Sub(m.rec.Timestamp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (m *Manager) status(now time.Time) domain.LockStatus {
	remaining := m.remaining(now)
	if remaining <= 0 {
		return domain.LockStatus{}
	}
	return domain.LockStatus{
		Locked:    true,
		Editor:    m.rec.Editor,
		Remaining: remaining,
	}
}

// persist writes the record through a temp file and rename, same discipline
// as the document commit. Callers hold m.mu.
func (m *Manager) persist() error {
	raw, err := json.Marshal(m.rec)
	if err != nil {
		return fmt.Errorf("%w: encoding lock record", domain.ErrStorageFailure)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("%w: writing lock record", domain.ErrStorageFailure)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("%w: committing lock record", domain.ErrStorageFailure)
	}
	return nil
}
