package auth

// Scope is the role/tenant/department context an operation demands. It is
// derived per request and never persisted.
type Scope struct {
	Role         Role
	CompanyID    string
	DepartmentID string
}

// Authorize evaluates verified claims against a required scope. Pure
// function, no side effects. Checks run in a fixed order (role, then tenant,
// then department) so the failing error kind is deterministic and does not
// leak whether a resource exists.
//
// Platform admins bypass tenant scoping; any role above department_user
// bypasses department scoping.
func Authorize(claims Claims, scope Scope) error {
	if claims.Role.Rank() < scope.Role.Rank() {
		return ErrInsufficientRole
	}
	if scope.CompanyID != "" && claims.Role != RolePlatformAdmin && claims.CompanyID != scope.CompanyID {
		return ErrWrongTenant
	}
	if scope.DepartmentID != "" && !claims.Role.Outranks(RoleDepartmentUser) && claims.DepartmentID != scope.DepartmentID {
		return ErrWrongDepartment
	}
	return nil
}
