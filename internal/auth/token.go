package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "parishledger"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenKind distinguishes the two self-issued token variants.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the claim set embedded in self-issued tokens. Access tokens
// carry the user id and role; refresh tokens carry only the id.
type TokenClaims struct {
	Role Role      `json:"role,omitempty"`
	Kind TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

// Tokens mints and validates the service's own HS256 tokens. The signing
// secret is fixed at construction; methods are safe for concurrent use.
type Tokens struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokensOption configures Tokens.
type TokensOption func(*Tokens)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokensOption {
	return func(t *Tokens) {
		if strings.TrimSpace(issuer) != "" {
			t.issuer = strings.TrimSpace(issuer)
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokensOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs the issuer/verifier from the process-wide secret.
func NewTokens(secret string, opts ...TokensOption) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	t := &Tokens{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// IssueAccess signs a short-lived access token embedding the user id and role.
func (t *Tokens) IssueAccess(userID string, role Role) (string, time.Time, error) {
	return t.issue(userID, role, TokenKindAccess, t.accessTTL)
}

// IssueRefresh signs a longer-lived refresh token embedding only the user id.
func (t *Tokens) IssueRefresh(userID string) (string, time.Time, error) {
	return t.issue(userID, "", TokenKindRefresh, t.refreshTTL)
}

func (t *Tokens) issue(userID string, role Role, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := TokenClaims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess validates a self-issued access token. A false return is the
// normal "not one of ours" signal: malformed input, a foreign signature, an
// expired timestamp, or a refresh token all land here without error.
func (t *Tokens) VerifyAccess(token string) (*TokenClaims, bool) {
	claims, ok := t.verify(token)
	if !ok || claims.Kind != TokenKindAccess {
		return nil, false
	}
	if !claims.Role.Valid() {
		return nil, false
	}
	return claims, true
}

// VerifyRefresh validates a self-issued refresh token.
func (t *Tokens) VerifyRefresh(token string) (*TokenClaims, bool) {
	claims, ok := t.verify(token)
	if !ok || claims.Kind != TokenKindRefresh {
		return nil, false
	}
	return claims, true
}

func (t *Tokens) verify(token string) (*TokenClaims, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	parsed, err := parser.ParseWithClaims(token, &TokenClaims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return nil, false
	}
	return claims, true
}
