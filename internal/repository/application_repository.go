package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dashboarder/enrollment-api/internal/models"
)

// ApplicationRepository handles persistence of student applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create persists a new pending application.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	if application.SubmittedAt.IsZero() {
		application.SubmittedAt = time.Now().UTC()
	}
	if application.Status == "" {
		application.Status = models.ApplicationStatusPending
	}
	const query = `INSERT INTO applications (id, institution_id, form_id, student_email, student_name, status, submitted_data, submitted_at)
        VALUES (:id, :institution_id, :form_id, :student_email, :student_name, :status, :submitted_data, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, institution_id, form_id, student_email, student_name, status, submitted_data, submitted_at FROM applications WHERE id = $1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// ExistsPending checks whether a pending application exists for the
// institution and normalized student email.
func (r *ApplicationRepository) ExistsPending(ctx context.Context, institutionID, studentEmail string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE institution_id = $1 AND student_email = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, institutionID, studentEmail, models.ApplicationStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending application: %w", err)
	}
	return true, nil
}

// ListPending returns the institution's pending applications with pagination.
func (r *ApplicationRepository) ListPending(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	const query = `SELECT id, institution_id, form_id, student_email, student_name, status, submitted_data, submitted_at
        FROM applications WHERE institution_id = $1 AND status = $2
        ORDER BY submitted_at DESC LIMIT $3 OFFSET $4`
	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, filter.InstitutionID, models.ApplicationStatusPending, size, offset); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM applications WHERE institution_id = $1 AND status = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, filter.InstitutionID, models.ApplicationStatusPending); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// DeleteByInstitution removes an application owned by the institution and
// reports how many rows were deleted. Zero rows means the application had
// already vanished.
func (r *ApplicationRepository) DeleteByInstitution(ctx context.Context, id, institutionID string) (int64, error) {
	const query = `DELETE FROM applications WHERE id = $1 AND institution_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return 0, fmt.Errorf("delete application: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete application rows: %w", err)
	}
	return deleted, nil
}

// FindForUpdate re-fetches an application inside the caller's transaction
// with a row lock, scoped to the claiming institution.
func (r *ApplicationRepository) FindForUpdate(ctx context.Context, tx *sqlx.Tx, id, institutionID string) (*models.Application, error) {
	const query = `SELECT id, institution_id, form_id, student_email, student_name, status, submitted_data, submitted_at
        FROM applications WHERE id = $1 AND institution_id = $2 FOR UPDATE`
	var application models.Application
	if err := tx.GetContext(ctx, &application, query, id, institutionID); err != nil {
		return nil, err
	}
	return &application, nil
}

// DeleteAllForIdentity removes every application for the student across all
// institutions inside the caller's transaction, returning the count. This is
// the cascade that retracts a student's other pending offers on acceptance.
func (r *ApplicationRepository) DeleteAllForIdentity(ctx context.Context, tx *sqlx.Tx, studentEmail string) (int64, error) {
	const query = `DELETE FROM applications WHERE student_email = $1`
	res, err := tx.ExecContext(ctx, query, studentEmail)
	if err != nil {
		return 0, fmt.Errorf("cascade delete applications: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cascade delete rows: %w", err)
	}
	return deleted, nil
}
