package model

import "time"

// Roles accepted for User.Role.  Students reserve and occupy spots;
// admins additionally manage lots, spots and other users' reservations.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is an account able to authenticate against the API.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique campus email address, stored lower-case.
//	PasswordHash – bcrypt hash of the password.
//	FullName     – display name shown in reservation listings.
//	Role         – either "student" or "admin".
//	CreatedAt    – creation timestamp.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FullName     string    // users.full_name
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
