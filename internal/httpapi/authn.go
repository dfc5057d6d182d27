package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"parishledger.org/internal/auth"
	"parishledger.org/internal/entra"
	"parishledger.org/internal/obs"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer"
)

// Paths below skip authentication. Matching is exact after normalization
// (case-folded, trailing slash stripped); prefixes match static assets.
var publicPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/register",
	"/api/v1/auth/refresh",
	"/api/v1/auth/logout",
	"/api/v1/auth/entra/login-url",
	"/api/v1/auth/entra/callback",
	"/healthz",
	"/readyz",
	"/metrics",
	"/openapi.yaml",
	"/docs",
}
var publicPrefixes = []string{
	"/assets/",
}

// withAuth is the gatekeeper every request passes through. Protected paths
// require a Bearer credential; the token is tried against the local verifier
// first and, on a miss, against the external one. Any failure past extraction
// is a uniform 401 with a short reason so nothing about keys or token
// internals leaks to the caller.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r.Header.Get(authHeader))
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing or malformed bearer credential")
			return
		}

		// Local tokens first. A miss is not a failure, just the signal to
		// try the external path.
		if claims, ok := a.auth.Tokens().VerifyAccess(token); ok {
			obs.CountVerification("local", "ok")
			identity := a.auth.Resolver().ResolveLocal(claims)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
			return
		}

		if a.verifier == nil {
			obs.CountVerification("local", "miss")
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		claims, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			obs.CountVerification("entra", verifyOutcome(err))
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		user, err := a.auth.Resolver().ResolveFederated(r.Context(), auth.FederatedClaims{
			Subject:           claims.Subject,
			PreferredUsername: claims.PreferredUsername,
			Email:             claims.Email,
			Name:              claims.Name,
		})
		if err != nil {
			obs.CountVerification("entra", resolveOutcome(err))
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		obs.CountVerification("entra", "ok")
		identity := auth.Identity{UserID: user.ID, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

// extractBearerToken parses the Authorization header value. Exactly two
// space-separated parts with a case-sensitive "Bearer" scheme are accepted.
func extractBearerToken(header string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(header), " ")
	if len(parts) != 2 || parts[0] != bearerScheme || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func isPublicPath(path string) bool {
	path = normalizePath(path)
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	path = strings.ToLower(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// requireRole gates a handler on the caller's role. A request without an
// identity got past the allowlist unauthenticated and is rejected outright.
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	for _, role := range roles {
		if identity.Role == role {
			return true
		}
	}
	writeError(w, r, http.StatusForbidden, "insufficient role")
	return false
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, entra.ErrExpired):
		return "expired"
	case errors.Is(err, entra.ErrUnknownKey):
		return "unknown_key"
	case errors.Is(err, entra.ErrKeyFetch):
		return "key_fetch"
	case errors.Is(err, entra.ErrIssuerMismatch):
		return "issuer"
	case errors.Is(err, entra.ErrAudienceMismatch):
		return "audience"
	case errors.Is(err, entra.ErrMalformed):
		return "malformed"
	default:
		return "signature"
	}
}

func resolveOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrProviderMismatch):
		return "provider_mismatch"
	case errors.Is(err, auth.ErrEmailClaimMissing):
		return "email_missing"
	case errors.Is(err, auth.ErrUserInactive):
		return "inactive"
	default:
		return "resolve_error"
	}
}
