package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusGraduated EnrollmentStatus = "graduated"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
)

// Enrollment is a student's single active membership in one institution.
// The enrollments table carries a unique constraint on student_email; that
// constraint, together with the row lock taken during acceptance, is what
// enforces the one-student-one-institution policy.
type Enrollment struct {
	ID                    string           `db:"id" json:"id"`
	InstitutionID         string           `db:"institution_id" json:"institution_id"`
	StudentID             string           `db:"student_id" json:"student_id"`
	StudentName           string           `db:"student_name" json:"student_name"`
	StudentEmail          string           `db:"student_email" json:"student_email"`
	Grade                 *string          `db:"grade" json:"grade,omitempty"`
	Status                EnrollmentStatus `db:"status" json:"status"`
	ApplicationData       types.JSONText   `db:"application_data" json:"application_data,omitempty"`
	OriginalApplicationID *string          `db:"original_application_id" json:"original_application_id,omitempty"`
	EnrolledAt            time.Time        `db:"enrolled_at" json:"enrolled_at"`
	GraduatedAt           *time.Time       `db:"graduated_at" json:"graduated_at,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	InstitutionID string
	Status        EnrollmentStatus
	Page          int
	PageSize      int
}
