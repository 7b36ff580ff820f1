// Package auth - requirement.go implements the request authorization decision: a
// route declares either a set of acceptable roles or a set of required permissions
// and Authorize answers allow/deny for a (possibly absent) principal.
package auth

// RequirementKind selects how a Requirement is evaluated.
type RequirementKind string

const (
	RequirementRole       RequirementKind = "role"
	RequirementPermission RequirementKind = "permission"
)

// Requirement is attached to a route when it is registered.
type Requirement struct {
	Kind        RequirementKind
	Roles       []Role
	Permissions []Permission
}

// RequireRoles builds a role-set requirement. The principal passes when its role
// meets or exceeds any one of roles.
func RequireRoles(roles ...Role) Requirement {
	return Requirement{Kind: RequirementRole, Roles: roles}
}

// RequirePermissions builds a permission-set requirement. The principal passes only
// when it holds every one of perms.
func RequirePermissions(perms ...Permission) Requirement {
	return Requirement{Kind: RequirementPermission, Permissions: perms}
}

// Empty reports whether the requirement declares nothing for its kind.
func (r Requirement) Empty() bool {
	switch r.Kind {
	case RequirementRole:
		return len(r.Roles) == 0
	case RequirementPermission:
		return len(r.Permissions) == 0
	default:
		return len(r.Roles) == 0 && len(r.Permissions) == 0
	}
}

// Authorize decides whether p may invoke an operation guarded by req.
//
// A requirement that declares nothing allows everyone, authenticated or not.
// Otherwise a nil principal is always denied. Callers distinguish the two deny
// cases themselves: no principal is an authentication failure, a principal that
// falls short is an authorization failure.
func Authorize(p *Principal, req Requirement) bool {
	if req.Empty() {
		return true
	}
	if p == nil {
		return false
	}

	switch req.Kind {
	case RequirementRole:
		for _, r := range req.Roles {
			if MeetsOrExceeds(p.Role, r) {
				return true
			}
		}
		return false
	case RequirementPermission:
		return HasAllPermissions(p.Role, req.Permissions)
	default:
		return false
	}
}
