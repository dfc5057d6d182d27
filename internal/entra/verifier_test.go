package entra

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testTenant = "tenant-123"
	testClient = "client-abc"
)

func signTestToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func testClaims(mutate func(*Claims)) *Claims {
	c := &Claims{
		PreferredUsername: "person@example.org",
		Name:              "Person",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    fmt.Sprintf(issuerFormat, testTenant),
			Subject:   "sub-1",
			Audience:  jwt.ClaimStrings{testClient},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if mutate != nil {
		mutate(c)
	}
	return c
}

func newTestVerifier(t *testing.T, key *rsa.PrivateKey, kid string) (*Verifier, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(jwksJSON(t, map[string]*rsa.PublicKey{kid: &key.PublicKey}))
	}))
	v, err := NewVerifier(
		Config{TenantID: testTenant, ClientID: testClient},
		WithKeyring(NewKeyring(server.URL)),
	)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v, server
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	token := signTestToken(t, key, "kid-1", testClaims(nil))
	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PreferredUsername != "person@example.org" {
		t.Fatalf("unexpected preferred_username: %s", claims.PreferredUsername)
	}
	if claims.Subject != "sub-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	token := signTestToken(t, key, "kid-1", testClaims(func(c *Claims) {
		c.Issuer = "https://login.microsoftonline.com/other-tenant/v2.0"
	}))
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrIssuerMismatch) {
		t.Fatalf("expected ErrIssuerMismatch, got %v", err)
	}
}

func TestVerifyRejectsV1Issuer(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	token := signTestToken(t, key, "kid-1", testClaims(func(c *Claims) {
		c.Issuer = "https://sts.windows.net/" + testTenant + "/"
	}))
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrIssuerMismatch) {
		t.Fatalf("expected ErrIssuerMismatch for v1 issuer, got %v", err)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	token := signTestToken(t, key, "kid-1", testClaims(func(c *Claims) {
		c.Audience = jwt.ClaimStrings{"some-other-app"}
	}))
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrAudienceMismatch) {
		t.Fatalf("expected ErrAudienceMismatch, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	token := signTestToken(t, key, "kid-1", testClaims(func(c *Claims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	}))
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsUnknownKid(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	token := signTestToken(t, key, "kid-other", testClaims(nil))
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	key := testRSAKey(t)
	impostor := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	// Signed with a different key but claiming the known kid.
	token := signTestToken(t, impostor, "kid-1", testClaims(nil))
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsSymmetricAlgorithm(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims(nil))
	hs.Header["kid"] = "kid-1"
	signed, err := hs.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(context.Background(), signed); err == nil {
		t.Fatal("HS256 token must be rejected")
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	key := testRSAKey(t)
	v, server := newTestVerifier(t, key, "kid-1")
	defer server.Close()

	for _, input := range []string{"", "   ", "not.a.jwt", "garbage"} {
		if _, err := v.Verify(context.Background(), input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestVerifySurfacesKeyFetchFailure(t *testing.T) {
	key := testRSAKey(t)
	v, err := NewVerifier(
		Config{TenantID: testTenant, ClientID: testClient},
		WithKeyring(NewKeyring("http://127.0.0.1:1")),
	)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	token := signTestToken(t, key, "kid-1", testClaims(nil))
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrKeyFetch) {
		t.Fatalf("expected ErrKeyFetch, got %v", err)
	}
}

func TestNewVerifierRequiresTenantAndClient(t *testing.T) {
	if _, err := NewVerifier(Config{ClientID: testClient}); err == nil {
		t.Fatal("expected error without tenant id")
	}
	if _, err := NewVerifier(Config{TenantID: testTenant}); err == nil {
		t.Fatal("expected error without client id")
	}
}
