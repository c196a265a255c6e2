package auth

// Role describes a user role in the dashboard auth model.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleGuest Role = "GUEST"
)

// ValidRole returns true when role is one of the supported user roles.
func ValidRole(role string) bool {
	switch Role(role) {
	case RoleAdmin, RoleGuest:
		return true
	default:
		return false
	}
}
