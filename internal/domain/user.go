package domain

import "time"

// UserRole enumerates platform roles, ordered roughly by authority.
type UserRole string

const (
	RoleSuperAdmin UserRole = "super-admin"
	RoleAdmin      UserRole = "admin"
	RoleManager    UserRole = "manager"
	RoleUser       UserRole = "user"
)

// CanAssign reports whether the role may assign or reassign tickets.
func (r UserRole) CanAssign() bool {
	return r == RoleManager || r == RoleAdmin || r == RoleSuperAdmin
}

// User is an operator in the organization. ManagerID forms the escalation
// chain; it is nil for users at the top of the hierarchy.
type User struct {
	ID                 string
	ManagerID          *string
	Email              string
	FirstName          string
	LastName           string
	PasswordHash       string
	Role               UserRole
	IsActive           bool
	IsAcceptingTickets bool
	Capacity           int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName joins first and last name for notification text.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
