package types

// Connection represents one live client connection registered for push
// notifications. Records are created on connection open and removed on
// close or on the first failed delivery; they are never updated in place.
type Connection struct {
	// Handle is the opaque identifier assigned by the transport layer
	// at connect time. Primary key.
	Handle string `json:"connection_handle" db:"connection_handle"`

	// Role is the role the client declared when connecting.
	// Defaults to RoleStudent when the client declared none.
	Role string `json:"role" db:"role"`

	// UserID is the user identity the client declared when connecting.
	// May be empty; a user may hold any number of simultaneous connections.
	UserID string `json:"user_id" db:"user_id"`
}
