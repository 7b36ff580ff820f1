// Package auth - roles.go defines the three organization roles and the total order between them.
package auth

// Role is the privilege level a user holds inside their organization.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// roleRank is fixed at init and only ever read afterwards.
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// Rank returns the position of role in the hierarchy. Unknown roles rank 0,
// below viewer.
func Rank(role Role) int {
	return roleRank[role]
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// MeetsOrExceeds reports whether actual is at least as privileged as required.
// An unknown required role can never be met.
func MeetsOrExceeds(actual, required Role) bool {
	if !required.Valid() {
		return false
	}
	return Rank(actual) >= Rank(required)
}

// ParseRole converts a raw string into a Role, reporting whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}
