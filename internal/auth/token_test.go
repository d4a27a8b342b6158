package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testPrincipal() *Principal {
	return &Principal{
		ID:           "p-1",
		Email:        "a@x.com",
		Role:         RoleDepartmentUser,
		CompanyID:    "c-1",
		DepartmentID: "d-5",
		Status:       StatusActive,
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc, err := NewTokenService("test-secret", WithIssuer("test"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, issued, err := svc.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.ID == "" {
		t.Fatalf("expected a token id")
	}

	claims, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "p-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	// Claims are copied verbatim from the principal at issuance.
	if claims.Role != RoleDepartmentUser || claims.CompanyID != "c-1" || claims.DepartmentID != "d-5" {
		t.Fatalf("claims not copied from principal: %+v", claims)
	}
	if claims.ID != issued.ID {
		t.Fatalf("token id mismatch: %s vs %s", claims.ID, issued.ID)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := t0
	now := func() time.Time { return clock }

	svc, err := NewTokenService("test-secret",
		WithTokenTTL(30*time.Minute), WithLeeway(0), WithClock(now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := svc.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = t0.Add(30*time.Minute - time.Second)
	if _, err := svc.Verify(context.Background(), token); err != nil {
		t.Fatalf("token must verify just before expiry: %v", err)
	}

	clock = t0.Add(30*time.Minute + time.Second)
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyLeewayToleratesSkew(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := t0
	now := func() time.Time { return clock }

	svc, err := NewTokenService("test-secret",
		WithTokenTTL(time.Minute), WithLeeway(5*time.Second), WithClock(now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := svc.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = t0.Add(time.Minute + 2*time.Second)
	if _, err := svc.Verify(context.Background(), token); err != nil {
		t.Fatalf("expiry within leeway must verify: %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc, err := NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := svc.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := svc.Verify(context.Background(), tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	other, err := NewTokenService("different-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if _, err := other.Verify(context.Background(), token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature across secrets, got %v", err)
	}
}

func TestVerifyConsultsRevocationSet(t *testing.T) {
	set := NewMemoryRevocationSet()
	svc, err := NewTokenService("test-secret", WithRevocationSet(set))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, claims, err := svc.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := svc.Verify(context.Background(), token); err != nil {
		t.Fatalf("token must verify before revocation: %v", err)
	}
	if err := svc.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestRevokeWithoutSetConfigured(t *testing.T) {
	svc, err := NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	_, claims, err := svc.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(context.Background(), claims); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIssueRequiresValidPrincipal(t *testing.T) {
	svc, err := NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if _, _, err := svc.Issue(nil); err == nil {
		t.Fatalf("expected error for nil principal")
	}
	if _, _, err := svc.Issue(&Principal{ID: "p-2", Role: "owner"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}
