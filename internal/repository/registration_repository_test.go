package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dashboarder/enrollment-api/internal/models"
)

func TestRegistrationRepositoryDeleteReviewedBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	// Only terminal statuses are eligible; pending rows are untouchable.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registrations WHERE status IN ($1, $2) AND reviewed_at <= $3")).
		WithArgs(models.RegistrationStatusApproved, models.RegistrationStatusRejected, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := repo.DeleteReviewedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDeleteReviewedBeforeZeroRowsIsSuccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec("DELETE FROM registrations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteReviewedBefore(context.Background(), time.Now())
	require.NoError(t, err)
	require.Zero(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryMarkReviewed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	reviewedAt := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	notes := "portfolio checks out"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2, reviewed_at = $3, reviewed_by = $4, review_notes = $5 WHERE id = $1")).
		WithArgs("reg-1", models.RegistrationStatusApproved, reviewedAt, "admin-1", &notes).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.MarkReviewed(context.Background(), tx, "reg-1", models.RegistrationStatusApproved, reviewedAt, "admin-1", &notes))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	registration := &models.Registration{
		Name:         "Pat Instructor",
		Email:        "pat@x.com",
		PasswordHash: "bcrypt-hash",
	}
	require.NoError(t, repo.Create(context.Background(), registration))
	require.NotEmpty(t, registration.ID)
	require.Equal(t, models.RegistrationStatusPending, registration.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
