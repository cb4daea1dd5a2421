package models

import "time"

// UserRole represents the closed set of roles in the system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// Valid reports whether the role is one of the three supported values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// RoleFromNumber maps the numeric role used by the auth contract
// (1=Admin, 2=Teacher, 3=Student) onto the enum. ok is false for any
// value outside the set.
func RoleFromNumber(n int) (UserRole, bool) {
	switch n {
	case 1:
		return RoleAdmin, true
	case 2:
		return RoleTeacher, true
	case 3:
		return RoleStudent, true
	default:
		return "", false
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UserStats aggregates per-role headcounts for the admin overview.
type UserStats struct {
	TotalUsers    int `json:"total_users"`
	TotalAdmins   int `json:"total_admins"`
	TotalTeachers int `json:"total_teachers"`
	TotalStudents int `json:"total_students"`
	Inactive      int `json:"inactive"`
}
