package auth

import (
	"context"
	"errors"
	"strings"
)

// principalFinder is the slice of the store the authenticator needs.
type principalFinder interface {
	FindByEmail(ctx context.Context, email string) (*Principal, error)
}

// Authenticator verifies credentials against stored principals. It is
// read-only; failed attempts leave no state behind.
type Authenticator struct {
	principals principalFinder
	// dummyHash is compared against on the unknown-email path so the call
	// costs the same whether or not the account exists.
	dummyHash string
}

// NewAuthenticator constructs an Authenticator over the given store.
func NewAuthenticator(principals principalFinder) (*Authenticator, error) {
	dummy, err := HashPassword("hireview-dummy-credential")
	if err != nil {
		return nil, err
	}
	return &Authenticator{principals: principals, dummyHash: dummy}, nil
}

// Authenticate looks up the principal by normalized email and compares the
// plaintext against the stored argon2id hash. Unknown email and wrong
// password return the identical ErrInvalidCredentials; only a correct
// password against an inactive account reveals ErrAccountInactive.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	principal, err := a.principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = VerifyPassword(a.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(principal.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !principal.Active() {
		return nil, ErrAccountInactive
	}
	return principal, nil
}
