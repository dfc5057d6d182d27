package auth

import "context"

// UserStore describes the persistence operations the auth subsystem needs.
// Create must be atomic on the lower-cased email: a second insert for the
// same address fails with ErrEmailTaken rather than producing two rows.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetActive(ctx context.Context, id string, active bool) error
}
