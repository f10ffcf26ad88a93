package types

import "time"

// Roles recognized by the system.
const (
	// RoleStudent is the default role for reporters. Students may create
	// incidents and receive updates about their own reports.
	RoleStudent = "Student"

	// RoleAdministrativeStaff may transition incident status and edit
	// pending incidents.
	RoleAdministrativeStaff = "AdministrativeStaff"

	// RoleAuthority may transition incident status and edit pending
	// incidents, same as administrative staff.
	RoleAuthority = "Authority"
)

// ValidRoles lists every role accepted at registration time.
var ValidRoles = []string{RoleStudent, RoleAdministrativeStaff, RoleAuthority}

// IsValidRole reports whether the given role is one of the recognized roles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CanManageIncidents reports whether the given role is authorized to
// transition incident status or edit pending incidents.
func CanManageIncidents(role string) bool {
	return role == RoleAdministrativeStaff || role == RoleAuthority
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// UserID is the unique identifier of the user.
	UserID string `json:"user_id" db:"user_id"`

	// FirstName is the user's given name(s).
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name(s).
	LastName string `json:"last_name" db:"last_name"`

	// DNI is the user's national identity document number,
	// exactly eight numeric digits.
	DNI string `json:"dni" db:"dni"`

	// Email is the user's email address. Unique across accounts.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system.
	// One of RoleStudent, RoleAdministrativeStaff, RoleAuthority.
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	// Accounts are immutable after registration.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
