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

// UserRepository covers the narrow slice of the users table the engine
// touches: institution lookups, student affiliation updates and instructor
// account creation on registration approval.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindInstitution returns the institution projection for an account ID.
func (r *UserRepository) FindInstitution(ctx context.Context, id string) (*models.Institution, error) {
	const query = `SELECT id, name FROM users WHERE id = $1 AND role = $2`
	var institution models.Institution
	if err := r.db.GetContext(ctx, &institution, query, id, models.RoleInstitution); err != nil {
		return nil, err
	}
	return &institution, nil
}

// ExistsByEmail checks whether an account already uses the email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE LOWER(email) = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check user email: %w", err)
	}
	return true, nil
}

// Create inserts a user inside the caller's transaction. Used by
// registration approval to materialize the instructor account.
func (r *UserRepository) Create(ctx context.Context, tx *sqlx.Tx, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO users (id, email, password_hash, name, role, active, institution_id, created_at)
        VALUES (:id, :email, :password_hash, :name, :role, :active, :institution_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateStudentAffiliation points the student's account (when one exists) at
// the institution that accepted them, inside the caller's transaction.
// Matching is by normalized email; a student without an account is a no-op.
func (r *UserRepository) UpdateStudentAffiliation(ctx context.Context, tx *sqlx.Tx, studentEmail, institutionID string) error {
	const query = `UPDATE users SET institution_id = $2 WHERE LOWER(email) = $1 AND role = $3`
	if _, err := tx.ExecContext(ctx, query, studentEmail, institutionID, models.RoleStudent); err != nil {
		return fmt.Errorf("update student affiliation: %w", err)
	}
	return nil
}

// DeleteInstitution removes an institution account. The caller is
// responsible for refusing deletion while active enrollments remain.
func (r *UserRepository) DeleteInstitution(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM users WHERE id = $1 AND role = $2`
	res, err := r.db.ExecContext(ctx, query, id, models.RoleInstitution)
	if err != nil {
		return 0, fmt.Errorf("delete institution: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete institution rows: %w", err)
	}
	return deleted, nil
}
