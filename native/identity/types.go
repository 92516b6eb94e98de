package identity

import (
	"fmt"
	"strings"

	"blockmarket/core/types"
)

// Role is the membership level held by a registered address. The platform
// owner is a separate singleton reference, never a Role value.
type Role uint8

const (
	RoleNone Role = iota
	RoleAdmin
	RoleStoreOwner
)

// String renders the role for events and RPC projections.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStoreOwner:
		return "storeowner"
	default:
		return "none"
	}
}

// Valid reports whether the role value is within the supported range.
func (r Role) Valid() bool {
	return r == RoleNone || r == RoleAdmin || r == RoleStoreOwner
}

// User is the registered profile for one address.
type User struct {
	Address types.Address
	Name    string
	Email   string
	Role    Role
}

// Clone returns a copy callers can mutate safely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// SanitizeUser validates and normalises a user profile, returning a cloned
// instance with trimmed name and email. The original value is not mutated.
func SanitizeUser(u *User) (*User, error) {
	if u == nil {
		return nil, fmt.Errorf("identity: nil user: %w", errValidation)
	}
	clone := u.Clone()
	clone.Name = strings.TrimSpace(clone.Name)
	clone.Email = strings.TrimSpace(clone.Email)
	if clone.Address.IsZero() {
		return nil, fmt.Errorf("identity: zero address: %w", errValidation)
	}
	if clone.Name == "" {
		return nil, fmt.Errorf("identity: empty name: %w", errValidation)
	}
	if !clone.Role.Valid() {
		return nil, fmt.Errorf("identity: invalid role %d: %w", clone.Role, errValidation)
	}
	return clone, nil
}
