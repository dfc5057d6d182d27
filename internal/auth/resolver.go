package auth

import (
	"context"
	"errors"
	"strings"
)

// FederatedClaims is the slice of a verified external token the resolver
// cares about. The caller must have signature-verified the token already;
// nothing here re-checks it.
type FederatedClaims struct {
	Subject           string
	PreferredUsername string
	Email             string
	Name              string
}

// EmailAddress picks the email-ish claim: preferred_username first, then the
// explicit email claim.
func (c FederatedClaims) EmailAddress() string {
	if v := strings.TrimSpace(c.PreferredUsername); v != "" {
		return v
	}
	return strings.TrimSpace(c.Email)
}

// Resolver maps verified token claims onto internal user records.
type Resolver struct {
	users UserStore
}

func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users}
}

// ResolveLocal maps self-issued access claims onto an identity. The claims
// were minted by this service, so they are trusted as-is.
func (r *Resolver) ResolveLocal(claims *TokenClaims) Identity {
	return Identity{UserID: claims.Subject, Role: claims.Role}
}

// ResolveFederated maps verified external claims onto a user record,
// provisioning a minimal-privilege account on first sight. Any principal
// holding a valid token from the trusted issuer is admitted as a new Viewer;
// an email already bound to a local-password account is rejected outright.
func (r *Resolver) ResolveFederated(ctx context.Context, claims FederatedClaims) (*User, error) {
	email := NormalizeEmail(claims.EmailAddress())
	if email == "" {
		return nil, ErrEmailClaimMissing
	}

	user, err := r.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return r.checkFederated(user)
	case errors.Is(err, ErrNotFound):
		// fall through to provisioning
	default:
		return nil, err
	}

	created := &User{
		Name:     strings.TrimSpace(claims.Name),
		Email:    email,
		Role:     RoleViewer,
		Provider: ProviderFederated,
		Active:   true,
	}
	if created.Name == "" {
		created.Name = email
	}
	err = r.users.Create(ctx, created)
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, ErrEmailTaken):
		// Lost a concurrent first-login race; the row exists now.
		user, err = r.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return r.checkFederated(user)
	default:
		return nil, err
	}
}

func (r *Resolver) checkFederated(user *User) (*User, error) {
	if user.Provider != ProviderFederated {
		return nil, ErrProviderMismatch
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	return user, nil
}
