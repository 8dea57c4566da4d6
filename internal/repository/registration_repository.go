package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dashboarder/enrollment-api/internal/models"
)

// RegistrationRepository handles persistence of instructor registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, name, email, password_hash, bio, phone, specialization, education, experience, status, submitted_at, reviewed_at, reviewed_by, review_notes`

// Create persists a new pending registration.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.SubmittedAt.IsZero() {
		registration.SubmittedAt = time.Now().UTC()
	}
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusPending
	}
	const query = `INSERT INTO registrations (id, name, email, password_hash, bio, phone, specialization, education, experience, status, submitted_at)
        VALUES (:id, :name, :email, :password_hash, :bio, :phone, :specialization, :education, :experience, :status, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindForUpdate locks a registration row inside the caller's transaction so
// the pending state cannot be reviewed twice.
func (r *RegistrationRepository) FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`
	var registration models.Registration
	if err := tx.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// ListByStatus returns registrations filtered by status, newest first.
func (r *RegistrationRepository) ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE status = $1 ORDER BY submitted_at DESC`
	var registrations []models.Registration
	if err := r.db.SelectContext(ctx, &registrations, query, status); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}

// MarkReviewed stamps the one-shot review transition inside the caller's
// transaction: status, reviewed_at, reviewed_by and notes move together.
func (r *RegistrationRepository) MarkReviewed(ctx context.Context, tx *sqlx.Tx, id string, status models.RegistrationStatus, reviewedAt time.Time, reviewerID string, notes *string) error {
	const query = `UPDATE registrations SET status = $2, reviewed_at = $3, reviewed_by = $4, review_notes = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, reviewedAt, reviewerID, notes); err != nil {
		return fmt.Errorf("mark registration reviewed: %w", err)
	}
	return nil
}

// DeleteReviewedBefore removes terminal registrations whose review timestamp
// is older than the cutoff and returns the number of deleted rows. Only the
// reaper calls this.
func (r *RegistrationRepository) DeleteReviewedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM registrations WHERE status IN ($1, $2) AND reviewed_at <= $3`
	res, err := r.db.ExecContext(ctx, query, models.RegistrationStatusApproved, models.RegistrationStatusRejected, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete reviewed registrations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete reviewed registrations rows: %w", err)
	}
	return deleted, nil
}
