package models

import "time"

// StaffRole represents the available staff roles for the RBAC system.
type StaffRole string

const (
	RoleMentor   StaffRole = "mentor"
	RoleFactTeam StaffRole = "fact_team"
	RoleAdmin    StaffRole = "admin"
	RoleAnalyst  StaffRole = "analyst"
)

// Valid reports whether the role is one of the known staff roles.
func (r StaffRole) Valid() bool {
	switch r {
	case RoleMentor, RoleFactTeam, RoleAdmin, RoleAnalyst:
		return true
	}
	return false
}

// User represents a staff member stored in the users table. Students never
// authenticate; they interact through opaque survey and consent tokens only.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         StaffRole  `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing staff users.
type UserFilter struct {
	Role     *StaffRole
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
