package domain

import "fmt"

// Role enumerates the closed set of account roles. There is no hierarchy:
// authorization matches roles exactly.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCustomer Role = "customer"
)

// ParseRole converts a stored or submitted string into a Role.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleCustomer:
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCustomer:
		return true
	default:
		return false
	}
}
