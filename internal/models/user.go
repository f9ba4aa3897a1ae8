package models

import (
	"time"
)

// Role is the closed set of roles a ResQLink account can hold.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleVolunteer  Role = "volunteer"
	RoleResponder  Role = "responder"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// AllRoles lists every valid role, in ascending order of privilege.
var AllRoles = []Role{RoleCitizen, RoleVolunteer, RoleResponder, RoleAdmin, RoleSuperAdmin}

// ParseRole maps a role name to its Role value.
func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// IsValid reports whether r belongs to the closed role set.
func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Status is the closed set of account lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
	StatusSysAdmin  Status = "sys_admin"
)

// AllStatuses lists every valid account status.
var AllStatuses = []Status{StatusPending, StatusActive, StatusInactive, StatusSuspended, StatusBanned, StatusSysAdmin}

// ParseStatus maps a status name to its Status value.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// CanAuthenticate reports whether an account in this status may log in.
// Role and status mutations happen in administrative workflows, not here.
func (s Status) CanAuthenticate() bool {
	return s == StatusActive || s == StatusSysAdmin
}

// User represents a ResQLink account. PasswordHash is never empty for
// password-authenticated accounts.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
