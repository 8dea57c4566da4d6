package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/dashboarder/enrollment-api/internal/models"
)

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "institution_id", "student_id", "student_name", "student_email", "grade", "status", "application_data", "original_application_id", "enrolled_at", "graduated_at"})
}

func TestEnrollmentRepositoryFindByIdentityMissingIsNil(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM enrollments WHERE student_email = \\$1").
		WithArgs("s@x.com").
		WillReturnRows(enrollmentRows())

	enrollment, err := repo.FindByIdentity(context.Background(), "s@x.com")
	require.NoError(t, err)
	require.Nil(t, enrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIdentityForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM enrollments WHERE student_email = \\$1 FOR UPDATE").
		WithArgs("s@x.com").
		WillReturnRows(enrollmentRows().
			AddRow("enr-1", "inst-a", "STD1234", "Sam", "s@x.com", nil, models.EnrollmentStatusActive, nil, nil, time.Now(), nil))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	enrollment, err := repo.FindByIdentityForUpdate(context.Background(), tx, "s@x.com")
	require.NoError(t, err)
	require.NotNil(t, enrollment)
	require.Equal(t, "inst-a", enrollment.InstitutionID)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateSurfacesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	pqErr := &pq.Error{Code: pqUniqueViolation, Constraint: "enrollments_student_email_key"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(pqErr)
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.Create(context.Background(), tx, &models.Enrollment{
		InstitutionID: "inst-a",
		StudentID:     "STD1234",
		StudentName:   "Sam",
		StudentEmail:  "s@x.com",
	})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolationClassification(t *testing.T) {
	require.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	require.True(t, IsUniqueViolation(fmt.Errorf("create enrollment: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "40001"}))
	require.False(t, IsUniqueViolation(errors.New("plain failure")))
	require.False(t, IsUniqueViolation(nil))
}

func TestEnrollmentRepositoryStudentIDExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE institution_id = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("inst-a", "STD1234").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE institution_id = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("inst-a", "STD9999").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	exists, err := repo.StudentIDExists(context.Background(), tx, "inst-a", "STD1234")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.StudentIDExists(context.Background(), tx, "inst-a", "STD9999")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountActiveByInstitution(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE institution_id = $1 AND status = $2")).
		WithArgs("inst-a", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountActiveByInstitution(context.Background(), "inst-a")
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
