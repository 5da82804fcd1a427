package domain

import "time"

// Role is the access level carried in a bearer token.
type Role string

// Roles ordered from least to most privileged.
const (
	RoleInstaller  Role = "installer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

var roleLevels = map[Role]int{
	RoleInstaller:  1,
	RoleTechnician: 2,
	RoleAdmin:      3,
}

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

// HasPermission reports whether r grants at least the access of required.
func (r Role) HasPermission(required Role) bool {
	have, ok := roleLevels[r]
	if !ok {
		return false
	}
	return have >= roleLevels[required]
}

// User is a workshop account. Password holds the bcrypt hash.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
