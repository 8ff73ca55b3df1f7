package domain

// Role identifies which side of the marketplace an actor is on.
type Role string

const (
	RoleDriver   Role = "driver"
	RoleCustomer Role = "customer"
)

// Identity is an authenticated actor.
type Identity struct {
	UserID string
	Role   Role
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleDriver || r == RoleCustomer
}

// Key returns the session registry key for the identity.
func (id Identity) Key() string {
	return string(id.Role) + ":" + id.UserID
}
