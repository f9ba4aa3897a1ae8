package models

import "time"

// LoginAttemptRecord tracks consecutive failures for one identifier
// (account email or source IP). The counter resets only on a successful
// login; once it reaches the configured threshold the record is locked
// until LockedUntil.
type LoginAttemptRecord struct {
	Identifier    string
	FailureCount  int
	LastFailureAt time.Time
	LockedUntil   *time.Time
}

// IsLocked reports whether the record is inside its lockout window.
func (r *LoginAttemptRecord) IsLocked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}
