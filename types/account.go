package types

import "time"

// Role is the authorization level of an account.
type Role string

const (
	RoleStudent   Role = "student"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// Roles lists every accepted role.
var Roles = []Role{RoleStudent, RoleLibrarian, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLibrarian, RoleAdmin:
		return true
	default:
		return false
	}
}

// Account represents a library user account.
// It contains identity, role, and audit metadata.
type Account struct {
	// ID is the unique identifier of the account (UUID).
	ID string `json:"id" db:"id"`

	// Name is the account holder's display name.
	Name string `json:"name" db:"name"`

	// Email is the normalized (trimmed, lower-cased) login email.
	Email string `json:"email" db:"email"`

	// Role decides what the account may do in the library services.
	Role Role `json:"role" db:"role"`

	// SecretHash stores the bcrypt hash of the account secret.
	// This field is never exposed in API responses.
	SecretHash string `json:"-" db:"secret_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
