// Package auth - permissions.go holds the static role → permission table and the
// HasPermission, HasAllPermissions and PermissionsFor lookups over it.
package auth

import "sort"

// Permission is a fine-grained action tag in resource:action form.
type Permission string

const (
	PermTaskCreate Permission = "task:create"
	PermTaskRead   Permission = "task:read"
	PermTaskUpdate Permission = "task:update"
	PermTaskDelete Permission = "task:delete"
	PermAuditRead  Permission = "audit:read"
)

// permissionsByRole is built once and never mutated. audit:read sits only on
// owner, so it is listed explicitly rather than derived from the hierarchy.
var permissionsByRole = map[Role]map[Permission]struct{}{
	RoleViewer: setOf(PermTaskRead),
	RoleAdmin:  setOf(PermTaskCreate, PermTaskRead, PermTaskUpdate, PermTaskDelete),
	RoleOwner:  setOf(PermTaskCreate, PermTaskRead, PermTaskUpdate, PermTaskDelete, PermAuditRead),
}

func setOf(perms ...Permission) map[Permission]struct{} {
	s := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// HasPermission reports whether role holds permission. Unknown roles and
// unknown permissions always yield false.
func HasPermission(role Role, permission Permission) bool {
	perms, ok := permissionsByRole[role]
	if !ok {
		return false
	}
	_, ok = perms[permission]
	return ok
}

// HasAllPermissions reports whether role holds every permission in required.
// An empty list is trivially satisfied.
func HasAllPermissions(role Role, required []Permission) bool {
	for _, p := range required {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// PermissionsFor returns a sorted copy of the permissions held by role.
func PermissionsFor(role Role) []Permission {
	perms := permissionsByRole[role]
	out := make([]Permission, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
