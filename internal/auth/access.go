// Package auth - access.go exposes the named access decisions the task and audit
// services consult. Nothing else should re-derive these rules.
package auth

// CanCreateTask reports whether role may create tasks. The task service does not
// call it today; creation is gated at the route level only.
func CanCreateTask(role Role) bool {
	return MeetsOrExceeds(role, RoleAdmin)
}

// CanUpdateOrDeleteTask reports whether role may modify or delete tasks in its
// own organization.
func CanUpdateOrDeleteTask(role Role) bool {
	return MeetsOrExceeds(role, RoleAdmin)
}

// CanViewAuditLog is owner-only. Admin does not qualify even though it ranks above viewer.
func CanViewAuditLog(role Role) bool {
	return role == RoleOwner
}
