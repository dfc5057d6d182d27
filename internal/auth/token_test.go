package auth

import (
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerifyAccessRoundtrip(t *testing.T) {
	tokens, err := NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, exp, err := tokens.IssueAccess("user-1", RoleTreasurer)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, ok := tokens.VerifyAccess(signed)
	if !ok {
		t.Fatal("expected valid access token")
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != RoleTreasurer {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
}

func TestVerifyAccessRejectsExpired(t *testing.T) {
	now := time.Now()
	tokens, err := NewTokens("test-secret",
		WithAccessTTL(time.Minute),
		WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, _, err := tokens.IssueAccess("user-1", RoleViewer)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := tokens.VerifyAccess(signed); ok {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyAccessMissesOnForeignInput(t *testing.T) {
	tokens, err := NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	other, err := NewTokens("different-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	foreign, _, err := other.IssueAccess("user-1", RoleAdmin)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	for name, input := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"three dots":     "a.b.c",
		"foreign secret": foreign,
	} {
		if _, ok := tokens.VerifyAccess(input); ok {
			t.Fatalf("%s: expected verification miss", name)
		}
	}
}

func TestVerifyAccessRejectsTamperedToken(t *testing.T) {
	tokens, err := NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	signed, _, err := tokens.IssueAccess("user-1", RoleAdmin)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	raw := []byte(signed)
	idx := strings.LastIndex(signed, ".") + 2
	raw[idx] ^= 0x01
	if _, ok := tokens.VerifyAccess(string(raw)); ok {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	tokens, err := NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	refresh, _, err := tokens.IssueRefresh("user-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	if _, ok := tokens.VerifyAccess(refresh); ok {
		t.Fatal("refresh token must not pass access verification")
	}
	claims, ok := tokens.VerifyRefresh(refresh)
	if !ok {
		t.Fatal("expected valid refresh token")
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != "" {
		t.Fatalf("refresh token should carry no role, got %q", claims.Role)
	}

	access, _, err := tokens.IssueAccess("user-1", RoleViewer)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, ok := tokens.VerifyRefresh(access); ok {
		t.Fatal("access token must not pass refresh verification")
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("  "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}
