package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hireview.io/internal/audit"
	"hireview.io/internal/ids"
	"hireview.io/internal/obs"
)

const entityPrincipal = "principal"

// Service composes the credential store, token service and audit recorder
// into the administrative operations of the subsystem. Every mutation of a
// sensitive record runs together with its audit entry in one transaction.
type Service struct {
	store    *Store
	tokens   *TokenService
	authn    *Authenticator
	recorder *audit.Recorder
	now      func() time.Time
}

// NewService wires the subsystem together.
func NewService(store *Store, tokens *TokenService, recorder *audit.Recorder) (*Service, error) {
	if store == nil || tokens == nil || recorder == nil {
		return nil, fmt.Errorf("%w: store, token service and recorder are required", ErrInvalidInput)
	}
	authn, err := NewAuthenticator(store)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:    store,
		tokens:   tokens,
		authn:    authn,
		recorder: recorder,
		now:      time.Now,
	}, nil
}

// Tokens exposes the token service for the request guard.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Session is the result of a successful login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Principal *Principal `json:"principal"`
}

// Login verifies credentials and issues a session token. All credential
// failures reach the caller as ErrInvalidCredentials or ErrAccountInactive;
// the HTTP boundary collapses both to a generic unauthorized response.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	principal, err := s.authn.Authenticate(ctx, email, password)
	if err != nil {
		obs.ObserveLogin("denied")
		return Session{}, err
	}
	token, claims, err := s.tokens.Issue(principal)
	if err != nil {
		obs.ObserveLogin("error")
		return Session{}, err
	}
	obs.ObserveLogin("ok")
	return Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Principal: principal,
	}, nil
}

// RevokeToken invalidates the presented token ahead of natural expiry.
func (s *Service) RevokeToken(ctx context.Context, claims Claims) error {
	return s.tokens.Revoke(ctx, claims)
}

// GetPrincipal loads one principal.
func (s *Service) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	return s.store.FindPrincipal(ctx, id)
}

// NewPrincipal describes an account to provision.
type NewPrincipal struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         Role   `json:"role"`
	CompanyID    string `json:"company_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
}

// CreatePrincipal provisions an account and records the audit create entry in
// the same transaction. The caller is the already-authorized actor.
func (s *Service) CreatePrincipal(ctx context.Context, actor CurrentPrincipal, in NewPrincipal, sourceAddr string) (*Principal, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	principal := &Principal{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		CompanyID:    strings.TrimSpace(in.CompanyID),
		DepartmentID: strings.TrimSpace(in.DepartmentID),
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.withAudit(ctx, func(tx *sql.Tx) error {
		if err := s.store.CreatePrincipalTx(ctx, tx, principal); err != nil {
			return err
		}
		snapshot, err := audit.Snapshot(principal)
		if err != nil {
			return err
		}
		return s.recorder.Append(ctx, tx, &audit.Entry{
			EntityName: entityPrincipal,
			Operation:  audit.OpCreate,
			ActorID:    actor.ID,
			EntityKey:  principal.ID,
			NewState:   snapshot,
			SourceAddr: sourceAddr,
		})
	})
	if err != nil {
		return nil, err
	}
	return principal, nil
}

// SetPrincipalStatus activates or deactivates an account. Deactivation does
// not retroactively invalidate unexpired tokens; a bearer stays valid until
// natural expiry unless its token is explicitly revoked.
func (s *Service) SetPrincipalStatus(ctx context.Context, actor CurrentPrincipal, id, status, sourceAddr string) (*Principal, error) {
	id = strings.TrimSpace(id)
	status = strings.TrimSpace(strings.ToLower(status))
	if id == "" {
		return nil, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	if status != StatusActive && status != StatusInactive {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}

	var updated *Principal
	err := s.withAudit(ctx, func(tx *sql.Tx) error {
		before, err := s.store.FindPrincipalForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if before.Status == status {
			updated = before
			return nil
		}
		after := *before
		after.Status = status
		after.UpdatedAt = s.now().UTC()
		if err := s.store.UpdatePrincipalStatusTx(ctx, tx, id, status, after.UpdatedAt); err != nil {
			return err
		}
		oldState, err := audit.Snapshot(before)
		if err != nil {
			return err
		}
		newState, err := audit.Snapshot(&after)
		if err != nil {
			return err
		}
		updated = &after
		return s.recorder.Append(ctx, tx, &audit.Entry{
			EntityName: entityPrincipal,
			Operation:  audit.OpUpdate,
			ActorID:    actor.ID,
			EntityKey:  id,
			OldState:   oldState,
			NewState:   newState,
			SourceAddr: sourceAddr,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangePassword lets a principal rotate their own credential. The audit
// snapshots never include the hash (excluded from the JSON encoding).
func (s *Service) ChangePassword(ctx context.Context, actor CurrentPrincipal, current, next, sourceAddr string) error {
	if strings.TrimSpace(next) == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	return s.withAudit(ctx, func(tx *sql.Tx) error {
		before, err := s.store.FindPrincipalForUpdateTx(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		if err := VerifyPassword(before.PasswordHash, current); err != nil {
			return ErrInvalidCredentials
		}
		after := *before
		after.UpdatedAt = s.now().UTC()
		if err := s.store.UpdatePasswordTx(ctx, tx, actor.ID, hash, after.UpdatedAt); err != nil {
			return err
		}
		oldState, err := audit.Snapshot(before)
		if err != nil {
			return err
		}
		newState, err := audit.Snapshot(&after)
		if err != nil {
			return err
		}
		return s.recorder.Append(ctx, tx, &audit.Entry{
			EntityName: entityPrincipal,
			Operation:  audit.OpUpdate,
			ActorID:    actor.ID,
			EntityKey:  actor.ID,
			OldState:   oldState,
			NewState:   newState,
			SourceAddr: sourceAddr,
		})
	})
}

// withAudit runs fn inside one transaction so the business mutation and its
// audit entry share a single commit boundary. Any failure, including a failed
// audit append, rolls the whole operation back.
func (s *Service) withAudit(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}
