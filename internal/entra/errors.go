package entra

import "errors"

// Verification failures are distinct values for diagnostics; the HTTP edge
// collapses all of them to a 401.
var (
	ErrMalformed        = errors.New("entra: malformed token")
	ErrUnknownKey       = errors.New("entra: signing key not found for kid")
	ErrKeyFetch         = errors.New("entra: key set fetch failed")
	ErrInvalidSignature = errors.New("entra: invalid token signature")
	ErrIssuerMismatch   = errors.New("entra: unexpected token issuer")
	ErrAudienceMismatch = errors.New("entra: unexpected token audience")
	ErrExpired          = errors.New("entra: token expired")
)
