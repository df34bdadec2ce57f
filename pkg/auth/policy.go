package auth

import "github.com/google/uuid"

// Decision is the outcome of an access check
type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// AuthorizeSelfOrAdmin lets an admin act on any record and a user act on
// their own. Unknown roles are denied.
func AuthorizeSelfOrAdmin(current Identity, target uuid.UUID) Decision {
	switch current.Role {
	case RoleAdmin:
		return Allow
	case RoleUser:
		if current.ID == target {
			return Allow
		}
	}
	return Deny
}
