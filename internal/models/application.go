package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ApplicationStatus represents the state of an application. Pending is the
// only stored state: acceptance converts the row into an enrollment and
// rejection deletes it, so reviewed applications never linger.
type ApplicationStatus string

// ApplicationStatusPending is the only status an application row carries.
const ApplicationStatusPending ApplicationStatus = "pending"

// Application is a student's pending request to enroll at one institution.
// The student may hold several of these across institutions at once; the
// first acceptance wins and cascades the rest away. student_email is stored
// pre-normalized.
type Application struct {
	ID            string            `db:"id" json:"id"`
	InstitutionID string            `db:"institution_id" json:"institution_id"`
	FormID        string            `db:"form_id" json:"form_id"`
	StudentEmail  string            `db:"student_email" json:"student_email"`
	StudentName   *string           `db:"student_name" json:"student_name,omitempty"`
	Status        ApplicationStatus `db:"status" json:"status"`
	SubmittedData types.JSONText    `db:"submitted_data" json:"submitted_data,omitempty"`
	SubmittedAt   time.Time         `db:"submitted_at" json:"submitted_at"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	InstitutionID string
	Page          int
	PageSize      int
}
