package auth

import (
	"context"
	"errors"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens, err := NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return NewService(NewMemoryUserStore(), tokens)
}

func TestRegisterLoginRoundtrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Name:     "Ada",
		Email:    "A@X.ORG",
		Password: "pw1",
		Role:     RoleTreasurer,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "a@x.org" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.Provider != ProviderLocal {
		t.Fatalf("unexpected provider: %s", user.Provider)
	}

	pair, logged, err := svc.Login(ctx, "a@x.org", "pw1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("login resolved wrong user: %s vs %s", logged.ID, user.ID)
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("unexpected token type: %s", pair.TokenType)
	}

	claims, ok := svc.Tokens().VerifyAccess(pair.AccessToken)
	if !ok {
		t.Fatal("minted access token does not verify")
	}
	if claims.Subject != user.ID || claims.Role != RoleTreasurer {
		t.Fatalf("claims do not match user: %+v", claims)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{
		Name: "Ada", Email: "a@x.org", Password: "pw1", Role: RoleViewer,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "a@x.org", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@x.org", "pw1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginRejectsFederatedAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if err := svc.Users().Create(ctx, &User{
		Name:     "Fed",
		Email:    "fed@x.org",
		Role:     RoleViewer,
		Provider: ProviderFederated,
		Active:   true,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if _, _, err := svc.Login(ctx, "fed@x.org", "anything"); !errors.Is(err, ErrProviderMismatch) {
		t.Fatalf("expected ErrProviderMismatch, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	in := RegisterInput{Name: "Ada", Email: "a@x.org", Password: "pw1", Role: RoleViewer}
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("Register: %v", err)
	}
	in.Email = "A@X.org"
	if _, err := svc.Register(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{
		Name: "Ada", Email: "a@x.org", Password: "pw1", Role: RoleViewer,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, _, err := svc.Login(ctx, "a@x.org", "pw1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Promote the user, then refresh: the new access token carries the new role.
	if err := svc.Users().SetActive(ctx, user.ID, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	rotated, _, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	claims, ok := svc.Tokens().VerifyAccess(rotated.AccessToken)
	if !ok || claims.Subject != user.ID {
		t.Fatalf("rotated access token invalid: ok=%v", ok)
	}

	if _, _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token must not refresh, got %v", err)
	}
	if _, _, err := svc.Refresh(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{
		Name: "Ada", Email: "a@x.org", Password: "pw1", Role: RoleViewer,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, _, err := svc.Login(ctx, "a@x.org", "pw1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Users().SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}
