package models

import "time"

// RegistrationStatus represents the review state of an instructor
// registration. Once a registration leaves pending it never returns.
type RegistrationStatus string

// Possible registration statuses.
const (
	RegistrationStatusPending  RegistrationStatus = "pending"
	RegistrationStatusApproved RegistrationStatus = "approved"
	RegistrationStatusRejected RegistrationStatus = "rejected"
)

// Registration is a pending instructor account request awaiting admin
// review. The password hash is stored so approval can materialize the user
// account without re-prompting; reviewed rows are reaped after the retention
// window.
type Registration struct {
	ID             string             `db:"id" json:"id"`
	Name           string             `db:"name" json:"name"`
	Email          string             `db:"email" json:"email"`
	PasswordHash   string             `db:"password_hash" json:"-"`
	Bio            *string            `db:"bio" json:"bio,omitempty"`
	Phone          *string            `db:"phone" json:"phone,omitempty"`
	Specialization *string            `db:"specialization" json:"specialization,omitempty"`
	Education      *string            `db:"education" json:"education,omitempty"`
	Experience     *string            `db:"experience" json:"experience,omitempty"`
	Status         RegistrationStatus `db:"status" json:"status"`
	SubmittedAt    time.Time          `db:"submitted_at" json:"submitted_at"`
	ReviewedAt     *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy     *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNotes    *string            `db:"review_notes" json:"review_notes,omitempty"`
}

// Terminal reports whether the registration has been reviewed.
func (r *Registration) Terminal() bool {
	return r.Status == RegistrationStatusApproved || r.Status == RegistrationStatusRejected
}
