// Package guard is the composition point between inbound requests and the
// auth subsystem: it extracts the bearer token, verifies it, authorizes the
// operation and hands the current principal to the handler. Every request
// walks the state machine Unauthenticated → TokenExtracted → TokenVerified →
// Authorized → Executed; any failure jumps to a terminal Rejected state
// carrying the originating error kind.
package guard

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hireview.io/internal/audit"
	"hireview.io/internal/auth"
	"hireview.io/internal/obs"
)

const (
	authHeader        = "Authorization"
	bearerPrefix      = "Bearer "
	diagnosticsHeader = "X-Auth-Diagnostics"
)

var errMissingToken = errors.New("guard: missing bearer token")

// State names the stages of the per-request state machine; exposed for logs
// and metrics only.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateTokenExtracted  State = "token_extracted"
	StateTokenVerified   State = "token_verified"
	StateAuthorized      State = "authorized"
	StateExecuted        State = "executed"
	StateRejected        State = "rejected"
)

// ScopeFunc derives the required scope for a request. It runs after token
// verification, so route parameters are available.
type ScopeFunc func(r *http.Request) auth.Scope

// Guard verifies and authorizes inbound requests.
type Guard struct {
	tokens *auth.TokenService
}

// New constructs a Guard over the token service.
func New(tokens *auth.TokenService) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate moves a request from Unauthenticated to TokenVerified and
// attaches claims and current principal to the context. Authorization happens
// per route via RequireScope or an in-handler Authorize call.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := StateUnauthenticated

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			g.reject(w, r, state, err)
			return
		}
		state = StateTokenExtracted

		claims, err := g.tokens.Verify(r.Context(), token)
		if err != nil {
			obs.ObserveTokenVerification(verifyOutcome(err))
			g.reject(w, r, state, err)
			return
		}
		obs.ObserveTokenVerification("ok")

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithCurrent(ctx, claims.Current())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope authorizes an already-authenticated request against the scope
// the ScopeFunc derives. The wrapped handler only ever runs in the Authorized
// state; execution is all-or-nothing from the caller's perspective.
func (g *Guard) RequireScope(scope ScopeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				g.reject(w, r, StateUnauthenticated, errMissingToken)
				return
			}
			if err := auth.Authorize(claims, scope(r)); err != nil {
				obs.ObserveAuthorize(denyReason(err))
				g.reject(w, r, StateTokenVerified, err)
				return
			}
			obs.ObserveAuthorize("allow")
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize re-checks a scope from inside a handler, for operations whose
// scope depends on the request body or on a loaded target entity.
func (g *Guard) Authorize(w http.ResponseWriter, r *http.Request, scope auth.Scope) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		g.reject(w, r, StateUnauthenticated, errMissingToken)
		return false
	}
	if err := auth.Authorize(claims, scope); err != nil {
		obs.ObserveAuthorize(denyReason(err))
		g.reject(w, r, StateTokenVerified, err)
		return false
	}
	obs.ObserveAuthorize("allow")
	return true
}

// AuthorizeResource re-checks a scope derived from an already-loaded entity.
// A denial answers exactly like a missing entity, so callers outside the
// target's scope cannot probe which ids exist. The real deny reason still
// reaches the log and metrics.
func (g *Guard) AuthorizeResource(w http.ResponseWriter, r *http.Request, scope auth.Scope) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		g.reject(w, r, StateUnauthenticated, errMissingToken)
		return false
	}
	if err := auth.Authorize(claims, scope); err != nil {
		obs.ObserveAuthorize(denyReason(err))
		g.reject(w, r, StateTokenVerified, fmt.Errorf("%w: %v", auth.ErrNotFound, err))
		return false
	}
	obs.ObserveAuthorize("allow")
	return true
}

// Reject writes the terminal Rejected response for an error raised outside
// the middleware pipeline: login failures, store failures, audit failures,
// invalid input. The from-state is derived from whether the request ever
// authenticated.
func (g *Guard) Reject(w http.ResponseWriter, r *http.Request, err error) {
	from := StateUnauthenticated
	if _, ok := auth.ClaimsFromContext(r.Context()); ok {
		from = StateAuthorized
	}
	g.reject(w, r, from, err)
}

// reject maps the internal error taxonomy onto the collapsed boundary
// responses: authentication and token failures become a generic 401,
// authorization failures a generic 403, persistence failures 503. Full
// detail goes to the internal log only, except for platform admins that
// explicitly ask for diagnostics.
func (g *Guard) reject(w http.ResponseWriter, r *http.Request, from State, err error) {
	status, public := classify(err)

	if status == http.StatusForbidden && wantsDiagnostics(r) {
		public = err.Error()
	}

	obs.LogEvent(map[string]any{
		"type":       "guard_reject",
		"method":     r.Method,
		"path":       r.URL.Path,
		"from_state": string(from),
		"to_state":   string(StateRejected),
		"status":     status,
		"error":      err.Error(),
		"source":     SourceAddr(r),
	})

	writeJSON(w, status, map[string]any{"error": public})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingToken),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccountInactive),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrExpired),
		errors.Is(err, auth.ErrRevoked):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrInsufficientRole),
		errors.Is(err, auth.ErrWrongTenant),
		errors.Is(err, auth.ErrWrongDepartment):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, auth.ErrStoreUnavailable),
		errors.Is(err, audit.ErrWriteFailed),
		errors.Is(err, audit.ErrUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, audit.ErrInvalidEntry):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func wantsDiagnostics(r *http.Request) bool {
	if r.Header.Get(diagnosticsHeader) != "1" {
		return false
	}
	principal, ok := auth.CurrentFromContext(r.Context())
	return ok && principal.Role == auth.RolePlatformAdmin
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	case errors.Is(err, auth.ErrRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "invalid_signature"
	}
}

func denyReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrInsufficientRole):
		return "insufficient_role"
	case errors.Is(err, auth.ErrWrongTenant):
		return "wrong_tenant"
	case errors.Is(err, auth.ErrWrongDepartment):
		return "wrong_department"
	default:
		return "deny"
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errMissingToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
