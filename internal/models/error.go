package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrInvalidCredentials covers unknown account and wrong password
	// identically, so responses never reveal account existence.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountLocked is returned while an identifier is inside its
	// lockout window.
	ErrAccountLocked = errors.New("too many failed attempts, account temporarily locked")

	// ErrRateLimitExceeded is the IP-scoped counterpart of ErrAccountLocked.
	ErrRateLimitExceeded = errors.New("too many attempts from this source")

	// Token validation errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenExpired   = errors.New("token has expired")
	ErrSessionRevoked = errors.New("session has been revoked")

	// ErrNoActiveSession is returned when a caller-context session id does
	// not resolve to a live session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrElevationFailed covers a missing/revoked session or a failed MFA
	// check during elevation.
	ErrElevationFailed = errors.New("session elevation failed")
)

// LockedError carries how long a locked identifier must wait. It wraps
// ErrAccountLocked or ErrRateLimitExceeded so errors.Is still matches.
type LockedError struct {
	Sentinel   error
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Sentinel, e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Unwrap() error {
	return e.Sentinel
}

// RetryAfterFrom extracts the retry-after hint from a lockout error, or
// zero when err carries none.
func RetryAfterFrom(err error) time.Duration {
	var le *LockedError
	if errors.As(err, &le) {
		return le.RetryAfter
	}
	return 0
}

// AccountNotActiveError is returned when credentials verify but the
// account status forbids login. It carries the status so callers can act.
type AccountNotActiveError struct {
	Status Status
}

func (e *AccountNotActiveError) Error() string {
	return fmt.Sprintf("account is not active (status: %s)", e.Status)
}

// IsAccountNotActive reports whether err wraps an AccountNotActiveError,
// returning the carried status when it does.
func IsAccountNotActive(err error) (Status, bool) {
	var anae *AccountNotActiveError
	if errors.As(err, &anae) {
		return anae.Status, true
	}
	return "", false
}
