package domain

import "time"

// LockStatus is a point-in-time view of the edit lock. A record older than
// the TTL reads as unlocked; expiry is evaluated lazily, there is no timer.
type LockStatus struct {
	Locked    bool
	Editor    string
	Remaining time.Duration
}
