package auth

import "errors"

// Authentication failures. Unknown email and wrong password intentionally
// share one sentinel so callers cannot enumerate accounts.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountInactive    = errors.New("auth: account inactive")
)

// Token failures.
var (
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpired          = errors.New("auth: token expired")
	ErrRevoked          = errors.New("auth: token revoked")
)

// Authorization failures, ordered by check: role, then tenant, then department.
var (
	ErrInsufficientRole = errors.New("auth: insufficient role")
	ErrWrongTenant      = errors.New("auth: wrong tenant")
	ErrWrongDepartment  = errors.New("auth: wrong department")
)

// Persistence failures.
var (
	ErrStoreUnavailable = errors.New("auth: store unavailable")
	ErrNotFound         = errors.New("auth: not found")
	ErrAlreadyExists    = errors.New("auth: already exists")
	ErrInvalidInput     = errors.New("auth: invalid input")
)
