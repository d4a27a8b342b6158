package guard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hireview.io/internal/audit"
	"hireview.io/internal/auth"
)

func newTestGuard(t *testing.T, opts ...auth.TokenOption) (*Guard, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret", opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return New(tokens), tokens
}

func issueToken(t *testing.T, tokens *auth.TokenService, p *auth.Principal) string {
	t.Helper()
	token, _, err := tokens.Issue(p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func departmentPrincipal() *auth.Principal {
	return &auth.Principal{
		ID:           "p-1",
		Email:        "a@x.com",
		Role:         auth.RoleDepartmentUser,
		CompanyID:    "c-1",
		DepartmentID: "d-5",
		Status:       auth.StatusActive,
	}
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error
}

func TestAuthenticateMissingToken(t *testing.T) {
	g, _ := newTestGuard(t)
	handlerRan := false
	h := g.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	}))

	for _, header := range []string{"", "Basic dXNlcjpwdw==", "Bearer ", "token-without-scheme"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
		if msg := errorBody(t, rec); msg != "unauthorized" {
			t.Fatalf("header %q: expected collapsed message, got %q", header, msg)
		}
	}
	if handlerRan {
		t.Fatalf("handler must not run without a verified token")
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	g, _ := newTestGuard(t)
	h := g.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorBody(t, rec); msg != "unauthorized" {
		t.Fatalf("expected collapsed message, got %q", msg)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := t0
	g, tokens := newTestGuard(t,
		auth.WithTokenTTL(time.Minute), auth.WithLeeway(0),
		auth.WithClock(func() time.Time { return clock }))
	token := issueToken(t, tokens, departmentPrincipal())

	scopeRan := false
	h := g.Authenticate(g.RequireScope(func(r *http.Request) auth.Scope {
		scopeRan = true
		return auth.Scope{}
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	clock = t0.Add(2 * time.Minute)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if scopeRan {
		t.Fatalf("scope derivation must not run for an expired token")
	}
}

func TestRequireScopeForbidden(t *testing.T) {
	g, tokens := newTestGuard(t)
	token := issueToken(t, tokens, departmentPrincipal())

	h := g.Authenticate(g.RequireScope(func(r *http.Request) auth.Scope {
		return auth.Scope{Role: auth.RoleDepartmentUser, CompanyID: "c-2"}
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/p-9", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	// The denial reason stays internal.
	if msg := errorBody(t, rec); msg != "forbidden" {
		t.Fatalf("expected collapsed message, got %q", msg)
	}
}

func TestAuthenticatedRequestReachesHandler(t *testing.T) {
	g, tokens := newTestGuard(t)
	token := issueToken(t, tokens, departmentPrincipal())

	var seen auth.CurrentPrincipal
	h := g.Authenticate(g.RequireScope(func(r *http.Request) auth.Scope {
		return auth.Scope{Role: auth.RoleDepartmentUser, CompanyID: "c-1", DepartmentID: "d-5"}
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := auth.CurrentFromContext(r.Context())
		if !ok {
			t.Fatal("current principal missing from context")
		}
		seen = current
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.ID != "p-1" || seen.Role != auth.RoleDepartmentUser || seen.CompanyID != "c-1" {
		t.Fatalf("unexpected principal in context: %+v", seen)
	}
	if seen.TokenID == "" {
		t.Fatalf("expected token id on current principal")
	}
}

func TestInHandlerAuthorize(t *testing.T) {
	g, tokens := newTestGuard(t)
	token := issueToken(t, tokens, departmentPrincipal())

	h := g.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Authorize(w, r, auth.Scope{Role: auth.RolePlatformAdmin}) {
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAuthorizeResourceHidesDenial(t *testing.T) {
	g, tokens := newTestGuard(t)
	token := issueToken(t, tokens, departmentPrincipal())

	h := g.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.AuthorizeResource(w, r, auth.Scope{Role: auth.RoleDepartmentUser, CompanyID: "c-2"}) {
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/p-9", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)

	// A scope denial on a loaded entity must be indistinguishable from the
	// entity not existing.
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if msg := errorBody(t, rec); msg != "not found" {
		t.Fatalf("expected collapsed message, got %q", msg)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		public string
	}{
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{auth.ErrAccountInactive, http.StatusUnauthorized, "unauthorized"},
		{auth.ErrExpired, http.StatusUnauthorized, "unauthorized"},
		{auth.ErrRevoked, http.StatusUnauthorized, "unauthorized"},
		{auth.ErrInsufficientRole, http.StatusForbidden, "forbidden"},
		{auth.ErrWrongTenant, http.StatusForbidden, "forbidden"},
		{auth.ErrWrongDepartment, http.StatusForbidden, "forbidden"},
		{auth.ErrStoreUnavailable, http.StatusServiceUnavailable, "service unavailable"},
		{audit.ErrWriteFailed, http.StatusServiceUnavailable, "service unavailable"},
		{audit.ErrUnavailable, http.StatusServiceUnavailable, "service unavailable"},
		{auth.ErrNotFound, http.StatusNotFound, "not found"},
		{auth.ErrAlreadyExists, http.StatusConflict, "already exists"},
	}
	for _, tc := range cases {
		status, public := classify(tc.err)
		if status != tc.status || public != tc.public {
			t.Fatalf("classify(%v) = %d %q, want %d %q", tc.err, status, public, tc.status, tc.public)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	if tok, err := extractBearerToken("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("expected token, got %q %v", tok, err)
	}
	// Scheme matching is case-insensitive per RFC 7235.
	if tok, err := extractBearerToken("bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("expected token for lowercase scheme, got %q %v", tok, err)
	}
	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc", strings.Repeat(" ", 4)} {
		if _, err := extractBearerToken(header); err == nil {
			t.Fatalf("header %q: expected error", header)
		}
	}
}
