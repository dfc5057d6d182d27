package auth

import (
	"strings"
	"time"
)

// Role is the fixed set of roles a user can hold.
type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleFinanceChair Role = "FinanceChair"
	RoleTreasurer    Role = "Treasurer"
	RoleSecretary    Role = "Secretary"
	RoleViewer       Role = "Viewer"
)

var allRoles = []Role{RoleAdmin, RoleFinanceChair, RoleTreasurer, RoleSecretary, RoleViewer}

// ParseRole maps a string onto a known role, case-insensitively.
func ParseRole(raw string) (Role, bool) {
	raw = strings.TrimSpace(raw)
	for _, r := range allRoles {
		if strings.EqualFold(raw, string(r)) {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Provider identifies how an account authenticates. It is immutable after
// creation: a token issued by one provider never authenticates an account
// registered with the other.
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderFederated Provider = "federated"
)

// User is an account able to operate on the ledger.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Provider     Provider  `json:"provider"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an email so it can act as a
// case-insensitive key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
