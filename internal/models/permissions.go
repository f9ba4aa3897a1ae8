package models

// Permission is a closed enumeration of everything a session can be
// authorized to do. Raw permission strings exist only at the boundary
// (configuration, tokens, API responses) via Name/ParsePermission.
type Permission uint8

const (
	PermDisasterRead Permission = iota
	PermDisasterReport
	PermDisasterManage
	PermLocationUpdate
	PermLocationTrack
	PermTaskRead
	PermTaskUpdate
	PermVolunteerRespond
	PermEmergencyRespond
	PermEmergencyManage
	PermResponseDispatch
	PermNotificationRead
	PermNotificationSend
	PermUserManage
	PermAuditRead
	PermSystemAdmin

	permCount // sentinel, keep last
)

var permissionNames = [permCount]string{
	PermDisasterRead:     "disaster:read",
	PermDisasterReport:   "disaster:report",
	PermDisasterManage:   "disaster:manage",
	PermLocationUpdate:   "location:update",
	PermLocationTrack:    "location:track",
	PermTaskRead:         "task:read",
	PermTaskUpdate:       "task:update",
	PermVolunteerRespond: "volunteer:respond",
	PermEmergencyRespond: "emergency:respond",
	PermEmergencyManage:  "emergency:manage",
	PermResponseDispatch: "response:dispatch",
	PermNotificationRead: "notification:read",
	PermNotificationSend: "notification:send",
	PermUserManage:       "user:manage",
	PermAuditRead:        "audit:read",
	PermSystemAdmin:      "system:admin",
}

// Name returns the boundary string for a permission.
func (p Permission) Name() string {
	if p >= permCount {
		return "unknown"
	}
	return permissionNames[p]
}

// ParsePermission maps a boundary string back to its enum value.
func ParsePermission(name string) (Permission, bool) {
	for p, n := range permissionNames {
		if n == name {
			return Permission(p), true
		}
	}
	return 0, false
}

// PermissionSet is a bitmask over the closed permission enumeration.
type PermissionSet uint32

// NewPermissionSet builds a set from individual permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s |= 1 << p
	}
	return s
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	return s&(1<<p) != 0
}

// Names returns the boundary strings for every permission in the set,
// in enumeration order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0)
	for p := Permission(0); p < permCount; p++ {
		if s.Has(p) {
			names = append(names, p.Name())
		}
	}
	return names
}

// ParsePermissionSet rebuilds a set from boundary strings, skipping
// anything outside the closed enumeration.
func ParsePermissionSet(names []string) PermissionSet {
	var s PermissionSet
	for _, n := range names {
		if p, ok := ParsePermission(n); ok {
			s |= 1 << p
		}
	}
	return s
}

// rolePermissions is the static role→permission table, built once.
var rolePermissions = func() map[Role]PermissionSet {
	citizen := NewPermissionSet(
		PermDisasterRead,
		PermDisasterReport,
		PermLocationUpdate,
		PermNotificationRead,
	)
	volunteer := citizen | NewPermissionSet(
		PermVolunteerRespond,
		PermTaskRead,
		PermTaskUpdate,
	)
	responder := volunteer | NewPermissionSet(
		PermEmergencyRespond,
		PermResponseDispatch,
		PermLocationTrack,
	)
	admin := responder | NewPermissionSet(
		PermDisasterManage,
		PermEmergencyManage,
		PermNotificationSend,
		PermUserManage,
		PermAuditRead,
	)
	return map[Role]PermissionSet{
		RoleCitizen:    citizen,
		RoleVolunteer:  volunteer,
		RoleResponder:  responder,
		RoleAdmin:      admin,
		// SuperAdmin bypasses the table in CanPerform; the snapshot still
		// carries every permission so tokens are self-describing.
		RoleSuperAdmin: NewPermissionSet() | (1<<permCount - 1),
	}
}()

// PermissionsFor returns the permission set for a role. Unknown roles get
// the empty set.
func PermissionsFor(role Role) PermissionSet {
	return rolePermissions[role]
}

// CanPerform reports whether a role is authorized for a permission.
// SuperAdmin is authorized for everything unconditionally.
func CanPerform(role Role, p Permission) bool {
	if role == RoleSuperAdmin {
		return true
	}
	return rolePermissions[role].Has(p)
}
