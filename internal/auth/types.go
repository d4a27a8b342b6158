package auth

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Company is the tenant boundary below platform scope.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Department is an organizational unit inside a company.
type Department struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Principal is a unique identity. CompanyID is empty only for platform
// admins; DepartmentID is set only for department users. Principals are never
// physically deleted, only moved to StatusInactive, so the audit trail keeps
// valid actor references.
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CompanyID    string    `json:"company_id,omitempty"`
	DepartmentID string    `json:"department_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Active reports whether the principal may authenticate.
func (p *Principal) Active() bool {
	return p != nil && p.Status == StatusActive
}

// CurrentPrincipal is the identity handed to business logic after the guard
// has verified and authorized a request. Downstream code never re-derives
// identity from raw storage.
type CurrentPrincipal struct {
	ID           string `json:"id"`
	Role         Role   `json:"role"`
	CompanyID    string `json:"company_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	TokenID      string `json:"-"`
}
