package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionRecord is the server-held counterpart of a session token, keyed
// by session id. Created on login, mutated on elevation/activity/
// revocation, swept after expiry.
type SessionRecord struct {
	SessionID         string
	UserID            string
	Role              Role
	Permissions       PermissionSet
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	Elevated          bool
	ElevatedUntil     *time.Time
	MFAVerified       bool
	LastActivityAt    time.Time
	CreatedAt         time.Time
	ExpiresAt         time.Time
	Revoked           bool
}

// IsElevated reports whether the session holds an unexpired elevation.
func (s *SessionRecord) IsElevated(now time.Time) bool {
	return s.Elevated && s.ElevatedUntil != nil && now.Before(*s.ElevatedUntil)
}

// SessionClaims are the JWT claims a session token self-encodes. The
// token is authenticity-verifiable on its own; revocation still needs
// the store.
type SessionClaims struct {
	SessionID         string   `json:"sid"`
	UserID            string   `json:"user_id"`
	Role              string   `json:"role"`
	Permissions       []string `json:"permissions"`
	Elevated          bool     `json:"elevated,omitempty"`
	DeviceFingerprint string   `json:"device_fp,omitempty"`
	IPAddress         string   `json:"ip,omitempty"`
	UserAgent         string   `json:"user_agent,omitempty"`
	jwt.RegisteredClaims
}
