package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// TokenPair carries freshly minted access and refresh tokens.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Service bundles registration, password login, and token refresh on top of
// the user store and the token issuer.
type Service struct {
	users    UserStore
	tokens   *Tokens
	resolver *Resolver
}

func NewService(users UserStore, tokens *Tokens) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		resolver: NewResolver(users),
	}
}

// Resolver exposes the identity resolver sharing this service's user store.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Tokens exposes the local token issuer/verifier.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Users exposes the underlying user store.
func (s *Service) Users() UserStore {
	return s.users
}

// RegisterInput is the payload for local account creation.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// Register creates a local-provider account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" || in.Name == "" || in.Password == "" {
		return nil, ErrInvalidInput
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidInput
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		Provider:     ProviderLocal,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password of a local account and mints a token pair.
// A federated account has no password and never authenticates here.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, err
	}
	if user.Provider != ProviderLocal {
		return TokenPair{}, nil, ErrProviderMismatch
	}
	if !user.Active {
		return TokenPair{}, nil, ErrUserInactive
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	pair, err := s.mint(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// LoginFederated mints a token pair for an already-resolved federated user.
func (s *Service) LoginFederated(user *User) (TokenPair, error) {
	return s.mint(user)
}

// Refresh exchanges a valid refresh token for a fresh pair. The role is
// re-read from the store so a role change takes effect on rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	claims, ok := s.tokens.VerifyRefresh(refreshToken)
	if !ok {
		return TokenPair{}, nil, ErrInvalidToken
	}
	user, err := s.users.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidToken
		}
		return TokenPair{}, nil, err
	}
	if !user.Active {
		return TokenPair{}, nil, ErrUserInactive
	}
	pair, err := s.mint(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

func (s *Service) mint(user *User) (TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
