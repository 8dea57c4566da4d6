package models

import "time"

// UserRole represents the account roles known to the platform.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleInstitution UserRole = "institution"
	RoleInstructor  UserRole = "instructor"
	RoleStudent     UserRole = "student"
)

// User represents an account row. The engine only touches two slices of it:
// the student's institution affiliation, updated during acceptance, and the
// instructor account materialized when a registration is approved.
type User struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	Name          string    `db:"name" json:"name"`
	Role          UserRole  `db:"role" json:"role"`
	Active        bool      `db:"active" json:"active"`
	InstitutionID *string   `db:"institution_id" json:"institution_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Institution is the slim projection of an institution account used when
// reporting which institution won a contended acceptance.
type Institution struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
