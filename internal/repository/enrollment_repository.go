package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dashboarder/enrollment-api/internal/models"
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. The acceptance path treats this as an expected outcome of
// contention, not a fault.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// EnrollmentRepository handles persistence of enrollments. The enrollments
// table is the ledger protected by the unique constraint on student_email.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, institution_id, student_id, student_name, student_email, grade, status, application_data, original_application_id, enrolled_at, graduated_at`

// FindByIdentity returns the enrollment for a normalized student email, or
// nil when the student is not enrolled anywhere.
func (r *EnrollmentRepository) FindByIdentity(ctx context.Context, studentEmail string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_email = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentEmail); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find enrollment by identity: %w", err)
	}
	return &enrollment, nil
}

// FindByIdentityForUpdate is the identity lock acquisition: it reads the
// student's enrollment row inside the caller's transaction with an exclusive
// lock so a concurrent acquirer blocks instead of racing. Returns nil when no
// enrollment exists (the lock then materializes on insert).
func (r *EnrollmentRepository) FindByIdentityForUpdate(ctx context.Context, tx *sqlx.Tx, studentEmail string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_email = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, studentEmail); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock enrollment by identity: %w", err)
	}
	return &enrollment, nil
}

// Create inserts an enrollment inside the caller's transaction. A unique
// violation on student_email (checked with IsUniqueViolation) is the last
// line of defense for the one-enrollment invariant and is returned unwrapped
// enough for the caller to classify.
func (r *EnrollmentRepository) Create(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, institution_id, student_id, student_name, student_email, grade, status, application_data, original_application_id, enrolled_at)
        VALUES (:id, :institution_id, :student_id, :student_name, :student_email, :grade, :status, :application_data, :original_application_id, :enrolled_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// StudentIDExists checks, inside the caller's transaction, whether the
// generated student-facing ID is already taken within the institution.
func (r *EnrollmentRepository) StudentIDExists(ctx context.Context, tx *sqlx.Tx, institutionID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE institution_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, institutionID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// FindByID returns an enrollment by its row ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments for an institution with pagination.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	base := `FROM enrollments WHERE institution_id = $1`
	args := []interface{}{filter.InstitutionID}
	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY enrolled_at DESC LIMIT %d OFFSET %d`, enrollmentColumns, base, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Update applies staff-initiated changes to name, grade and status.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET student_name = :student_name, grade = :grade, status = :status, graduated_at = :graduated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment owned by the institution, reporting the
// number of deleted rows.
func (r *EnrollmentRepository) Delete(ctx context.Context, id, institutionID string) (int64, error) {
	const query = `DELETE FROM enrollments WHERE id = $1 AND institution_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return 0, fmt.Errorf("delete enrollment: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete enrollment rows: %w", err)
	}
	return deleted, nil
}

// CountActiveByInstitution returns the number of active enrollments held by
// an institution. Institution deletion is refused while this is non-zero.
func (r *EnrollmentRepository) CountActiveByInstitution(ctx context.Context, institutionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE institution_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, institutionID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}
