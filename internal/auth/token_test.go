package auth

import (
	"context"
	"testing"
	"time"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", "assistant-gateway")

	token, err := issuer.IssueToken(context.Background(), &domain.RequestContext{
		UserID:       "user-1",
		Role:         "warehouse-clerk",
		Organization: "org-main",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != "warehouse-clerk" || claims.Organization != "org-main" {
		t.Errorf("unexpected identity claims %q/%q", claims.Role, claims.Organization)
	}
	if claims.Issuer != "assistant-gateway" {
		t.Errorf("unexpected issuer %q", claims.Issuer)
	}
}

func TestIssueTokenRequiresContext(t *testing.T) {
	issuer := NewIssuer("secret", "assistant-gateway")
	if _, err := issuer.IssueToken(context.Background(), nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := NewIssuer("secret", "assistant-gateway",
		WithTTL(time.Hour),
		WithClock(func() time.Time { return past }),
	)

	token, err := issuer.IssueToken(context.Background(), &domain.RequestContext{UserID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := NewIssuer("secret", "assistant-gateway")
	other := NewIssuer("different-secret", "assistant-gateway")

	token, err := other.IssueToken(context.Background(), &domain.RequestContext{UserID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected foreign signature to be rejected")
	}
}
