package user

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the system (matches user_role enum)
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Status represents user status (matches user_status enum)
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User represents a store account (matches actual users table)
type User struct {
	ID     uuid.UUID `db:"id"`
	Email  string    `db:"email"`
	Name   string    `db:"name"`
	Role   Role      `db:"role"`
	Status Status    `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsAdmin returns true if user is an admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true if the account is not suspended
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
