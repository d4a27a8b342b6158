package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL = 30 * time.Minute
	defaultLeeway   = 5 * time.Second
	defaultIssuer   = "hireview"
)

// Claims is the decoded payload of a session token. Role and scope fields are
// copied verbatim from the principal at issuance and never re-derived during
// the token's lifetime.
type Claims struct {
	Role         Role   `json:"role"`
	CompanyID    string `json:"company_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// Current converts verified claims into the identity handed to handlers.
func (c Claims) Current() CurrentPrincipal {
	return CurrentPrincipal{
		ID:           c.Subject,
		Role:         c.Role,
		CompanyID:    c.CompanyID,
		DepartmentID: c.DepartmentID,
		TokenID:      c.ID,
	}
}

// TokenService issues and verifies HS256-signed session tokens. Tokens are
// self-contained; the optional revocation set is the only stateful escape
// hatch and is consulted only when configured.
type TokenService struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	leeway      time.Duration
	revocations RevocationSet
	now         func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithTokenTTL overrides the default 30 minute token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl <= 0 {
			return fmt.Errorf("%w: token ttl must be positive", ErrInvalidInput)
		}
		s.ttl = ttl
		return nil
	}
}

// WithLeeway sets the clock skew tolerance for expiry comparison.
func WithLeeway(d time.Duration) TokenOption {
	return func(s *TokenService) error {
		if d < 0 {
			return fmt.Errorf("%w: leeway must not be negative", ErrInvalidInput)
		}
		s.leeway = d
		return nil
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		if iss := strings.TrimSpace(issuer); iss != "" {
			s.issuer = iss
		}
		return nil
	}
}

// WithRevocationSet enables per-verification revocation lookups.
func WithRevocationSet(set RevocationSet) TokenOption {
	return func(s *TokenService) error {
		s.revocations = set
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs a TokenService with the given signing secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidInput)
	}
	svc := &TokenService{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		leeway: defaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a session token for the principal. Claims mirror the principal
// at this instant; later principal changes do not touch outstanding tokens.
func (s *TokenService) Issue(p *Principal) (string, Claims, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return "", Claims{}, fmt.Errorf("%w: principal is required", ErrInvalidInput)
	}
	if !p.Role.Valid() {
		return "", Claims{}, fmt.Errorf("%w: principal role %q", ErrInvalidInput, p.Role)
	}

	now := s.now().UTC()
	claims := Claims{
		Role:         p.Role,
		CompanyID:    p.CompanyID,
		DepartmentID: p.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, then expiry, then (when a revocation set is
// configured) the token id. Context bounds the revocation lookup only;
// signature and expiry checks are pure in-memory computations.
func (s *TokenService) Verify(ctx context.Context, token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidSignature
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	},
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalidSignature
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidSignature
	}
	if strings.TrimSpace(claims.Subject) == "" || !claims.Role.Valid() {
		return Claims{}, ErrInvalidSignature
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("%w: revocation lookup: %v", ErrStoreUnavailable, err)
		}
		if revoked {
			return Claims{}, ErrRevoked
		}
	}
	return *claims, nil
}

// Revoke invalidates the token id ahead of natural expiry. It is a no-op
// error when no revocation set is configured.
func (s *TokenService) Revoke(ctx context.Context, claims Claims) error {
	if s.revocations == nil {
		return fmt.Errorf("%w: revocation set is not configured", ErrInvalidInput)
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return fmt.Errorf("%w: claims carry no token id", ErrInvalidInput)
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: revoke: %v", ErrStoreUnavailable, err)
	}
	return nil
}
