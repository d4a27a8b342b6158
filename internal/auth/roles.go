package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of principal roles. Scope evaluation happens only
// through Role.Rank and Authorize; handlers never compare role strings.
type Role string

const (
	RolePlatformAdmin  Role = "platform_admin"
	RoleCompanyUser    Role = "company_user"
	RoleDepartmentUser Role = "department_user"
)

var roleRanks = map[Role]int{
	RoleDepartmentUser: 1,
	RoleCompanyUser:    2,
	RolePlatformAdmin:  3,
}

// Rank returns the hierarchy position of the role; higher outranks lower.
// Unknown roles rank zero and satisfy no scope.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Outranks reports whether r sits strictly above other in the hierarchy.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(s)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return role, nil
}
