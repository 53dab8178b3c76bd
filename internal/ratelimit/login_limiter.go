package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Config controls the lockout policy.
type Config struct {
	// MaxFailures is the attempt ceiling before a lockout starts.
	MaxFailures int
	// BaseLockout is the lockout window at backoff level zero.
	BaseLockout time.Duration
	// MaxLevel caps the exponential backoff. With the defaults the window
	// tops out at BaseLockout * 2^4 = 4 hours.
	MaxLevel int
}

// DefaultConfig returns the stock policy: 5 attempts, 15 minute base window,
// backoff level capped at 4.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		BaseLockout: 15 * time.Minute,
		MaxLevel:    4,
	}
}

type entry struct {
	failures    int
	level       int
	lastFailure time.Time
	lockedUntil time.Time
}

// LoginLimiter tracks failed login attempts keyed by (client address,
// identity) and enforces exponential lockout. State is purely in-process and
// volatile: a restart resets it, which at worst forgives a lockout early.
type LoginLimiter struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
}

// NewLoginLimiter creates a limiter with the given policy. Zero-valued
// fields fall back to the defaults.
func NewLoginLimiter(cfg Config) *LoginLimiter {
	def := DefaultConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.BaseLockout <= 0 {
		cfg.BaseLockout = def.BaseLockout
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = def.MaxLevel
	}
	return &LoginLimiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Key builds the limiter key for a client address and login identity. The
// port is stripped so every connection from the same host shares a counter.
func Key(remoteAddr, identity string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return host + "|" + identity
}

// IsLocked reports whether the key is currently locked out and, if so, how
// long the caller should wait. Stale entries are purged on the way.
func (l *LoginLimiter) IsLocked(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return false, 0
	}
	now := time.Now()
	if l.stale(e, now) {
		delete(l.entries, key)
		return false, 0
	}
	if now.Before(e.lockedUntil) {
		return true, e.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed attempt. When the count reaches the ceiling
// a lockout starts at the entry's current backoff level, the level steps up
// (capped), and the count resets for the next cycle.
func (l *LoginLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.failures++
	e.lastFailure = time.Now()

	if e.failures >= l.cfg.MaxFailures {
		e.lockedUntil = e.lastFailure.Add(l.lockoutFor(e.level))
		if e.level < l.cfg.MaxLevel {
			e.level++
		}
		e.failures = 0
	}
}

// RecordSuccess resets the failure count. The backoff level is deliberately
// left in place so rapid fail/succeed cycling against the same account keeps
// paying the escalated window until the entry goes stale.
func (l *LoginLimiter) RecordSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.failures = 0
	if e.level == 0 {
		delete(l.entries, key)
	}
}

// AttemptsRemaining reports how many more failures the key can absorb before
// the next lockout starts.
func (l *LoginLimiter) AttemptsRemaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return l.cfg.MaxFailures
	}
	remaining := l.cfg.MaxFailures - e.failures
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Run sweeps stale entries at the given interval until the context ends.
func (l *LoginLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.Sweep()
			if removed > 0 {
				slog.Debug("login limiter sweep", slog.Int("removed", removed))
			}
		}
	}
}

// Sweep removes entries inactive for longer than twice their current lockout
// window and returns how many were dropped.
func (l *LoginLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range l.entries {
		if l.stale(e, now) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

func (l *LoginLimiter) stale(e *entry, now time.Time) bool {
	return now.Sub(e.lastFailure) > 2*l.lockoutFor(e.level)
}

func (l *LoginLimiter) lockoutFor(level int) time.Duration {
	if level > l.cfg.MaxLevel {
		level = l.cfg.MaxLevel
	}
	return l.cfg.BaseLockout << uint(level)
}
