package entra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuerFormat = "https://login.microsoftonline.com/%s/v2.0"
	jwksFormat   = "https://login.microsoftonline.com/%s/discovery/v2.0/keys"
)

// Config identifies the tenant and this service's app registration.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Claims is the decoded payload of a verified Entra token.
type Claims struct {
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier validates Entra-issued tokens: RS256 signature against the cached
// key set, issuer, audience, and expiry. All four checks must pass; the kid
// in the header is used only to locate the key, never as proof of anything.
type Verifier struct {
	issuer   string
	audience string
	keys     *Keyring
	now      func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithKeyring substitutes the key cache (useful for tests).
func WithKeyring(keys *Keyring) VerifierOption {
	return func(v *Verifier) {
		if keys != nil {
			v.keys = keys
		}
	}
}

// WithVerifierClock overrides the time source.
func WithVerifierClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier builds a verifier for the configured tenant. Only the v2.0
// issuer format is accepted; the tenant's v1 endpoint is not in play because
// tokens are acquired against the v2.0 authorize/token endpoints.
func NewVerifier(cfg Config, opts ...VerifierOption) (*Verifier, error) {
	tenant := strings.TrimSpace(cfg.TenantID)
	client := strings.TrimSpace(cfg.ClientID)
	if tenant == "" || client == "" {
		return nil, errors.New("entra: tenant id and client id are required")
	}
	v := &Verifier{
		issuer:   fmt.Sprintf(issuerFormat, tenant),
		audience: client,
		keys:     NewKeyring(fmt.Sprintf(jwksFormat, tenant)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify validates the token and returns its claims, or one of the package's
// sentinel errors. It never partially trusts a token: a single failed check
// rejects the whole thing.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, ErrMalformed
		}
		return v.keys.SigningKey(ctx, kid)
	})
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// classify maps golang-jwt errors onto the package's sentinel taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKey),
		errors.Is(err, ErrKeyFetch),
		errors.Is(err, ErrMalformed):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}
