package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dashboarder/enrollment-api/internal/models"
	"github.com/dashboarder/enrollment-api/internal/repository"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
)

// Long waits on a contended identity row are bounded so an abandoned caller
// does not pin the lock queue indefinitely.
const acceptLockTimeout = `SET LOCAL lock_timeout = '10s'`

type acceptanceApplicationStore interface {
	FindForUpdate(ctx context.Context, tx *sqlx.Tx, id, institutionID string) (*models.Application, error)
	DeleteAllForIdentity(ctx context.Context, tx *sqlx.Tx, studentEmail string) (int64, error)
}

type acceptanceEnrollmentStore interface {
	FindByIdentityForUpdate(ctx context.Context, tx *sqlx.Tx, studentEmail string) (*models.Enrollment, error)
	Create(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	StudentIDExists(ctx context.Context, tx *sqlx.Tx, institutionID, studentID string) (bool, error)
	FindByIdentity(ctx context.Context, studentEmail string) (*models.Enrollment, error)
}

type acceptanceUserStore interface {
	UpdateStudentAffiliation(ctx context.Context, tx *sqlx.Tx, studentEmail, institutionID string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// AcceptanceService owns the one transition that creates an Enrollment and
// deletes Applications. Correctness under concurrent accepts rests on three
// layers inside a single serializable transaction: the locked re-fetch of
// the application, the exclusive lock on the identity's enrollment row, and
// the unique constraint on student_email as the last line of defense.
type AcceptanceService struct {
	tx           txProvider
	applications acceptanceApplicationStore
	enrollments  acceptanceEnrollmentStore
	users        acceptanceUserStore
	resolver     *institutionResolver
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewAcceptanceService constructs AcceptanceService.
func NewAcceptanceService(tx txProvider, applications acceptanceApplicationStore, enrollments acceptanceEnrollmentStore, users acceptanceUserStore, institutions institutionReader, cache lookupCache, metrics *MetricsService, logger *zap.Logger) *AcceptanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcceptanceService{
		tx:           tx,
		applications: applications,
		enrollments:  enrollments,
		users:        users,
		resolver:     &institutionResolver{users: institutions, cache: cache},
		metrics:      metrics,
		logger:       logger,
	}
}

// Accept atomically enrolls the applicant: it re-fetches the application
// under lock, acquires the identity's enrollment lock, allocates the
// student-facing ID, creates the enrollment, cascades the delete of every
// pending application for the student across all institutions, and updates
// the student's account affiliation. Any failure rolls the whole
// transaction back; partial state is never observable.
//
// AlreadyEnrolled and ApplicationVanished are expected outcomes of normal
// contention, reported with the winning institution where known. They are
// not retried here: the losing institution should consciously re-evaluate
// rather than have the engine re-submit on its behalf.
func (s *AcceptanceService) Accept(ctx context.Context, institutionID, applicationID string) (*models.Enrollment, error) {
	if institutionID == "" || applicationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "institution and application IDs are required")
	}

	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to open acceptance transaction")
	}
	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, acceptLockTimeout); err != nil {
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to bound lock wait")
	}

	application, err := s.applications.FindForUpdate(ctx, tx, applicationID, institutionID)
	if err != nil {
		if err == sql.ErrNoRows {
			s.metrics.RecordAccept(AcceptOutcomeVanished)
			s.logger.Sugar().Infow("application vanished before acceptance",
				"application_id", applicationID, "institution_id", institutionID)
			return nil, appErrors.ErrApplicationVanished
		}
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load application")
	}

	identity := models.NormalizeIdentity(application.StudentEmail)

	existing, err := s.enrollments.FindByIdentityForUpdate(ctx, tx, identity.String())
	if err != nil {
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to lock enrollment ledger")
	}
	if existing != nil {
		s.metrics.RecordAccept(AcceptOutcomeAlreadyEnrolled)
		s.logger.Sugar().Infow("acceptance lost to existing enrollment",
			"application_id", applicationID,
			"institution_id", institutionID,
			"winning_institution_id", existing.InstitutionID,
		)
		return nil, appErrors.AlreadyEnrolled(s.resolver.Name(ctx, existing.InstitutionID))
	}

	studentID, err := AllocateStudentID(ctx, func(ctx context.Context, candidate string) (bool, error) {
		return s.enrollments.StudentIDExists(ctx, tx, institutionID, candidate)
	})
	if err != nil {
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to allocate student id")
	}

	var values map[string]interface{}
	if len(application.SubmittedData) > 0 {
		// Submissions are free-form; an unparseable payload only costs the
		// grade extraction, never the acceptance.
		_ = json.Unmarshal(application.SubmittedData, &values)
	}
	grade := extractGrade(values)

	name := "Unknown"
	if application.StudentName != nil && *application.StudentName != "" {
		name = *application.StudentName
	}

	enrollment := &models.Enrollment{
		InstitutionID:         institutionID,
		StudentID:             studentID,
		StudentName:           name,
		StudentEmail:          identity.String(),
		Grade:                 &grade,
		Status:                models.EnrollmentStatusActive,
		ApplicationData:       application.SubmittedData,
		OriginalApplicationID: &application.ID,
	}

	if err := s.enrollments.Create(ctx, tx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			// A concurrent accept slipped past the lock; the constraint
			// resolved it. Roll back, then read the winner from committed
			// state to report who got the student.
			_ = tx.Rollback()
			finished = true
			s.metrics.RecordAccept(AcceptOutcomeAlreadyEnrolled)
			s.logger.Sugar().Warnw("acceptance lost race on uniqueness constraint",
				"application_id", applicationID,
				"institution_id", institutionID,
				"student_email", identity.String(),
			)
			return nil, s.reportWinner(ctx, identity.String())
		}
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to create enrollment")
	}

	deleted, err := s.applications.DeleteAllForIdentity(ctx, tx, identity.String())
	if err != nil {
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to cascade delete applications")
	}

	if err := s.users.UpdateStudentAffiliation(ctx, tx, identity.String(), institutionID); err != nil {
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to update student affiliation")
	}

	if err := tx.Commit(); err != nil {
		s.metrics.RecordAccept(AcceptOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to commit acceptance")
	}
	finished = true

	s.metrics.RecordAccept(AcceptOutcomeWon)
	s.metrics.RecordCascade(deleted)
	s.logger.Sugar().Infow("student enrolled",
		"enrollment_id", enrollment.ID,
		"student_id", enrollment.StudentID,
		"student_email", identity.String(),
		"institution_id", institutionID,
		"applications_deleted", deleted,
	)
	return enrollment, nil
}

// reportWinner looks up the committed enrollment that beat this acceptance.
func (s *AcceptanceService) reportWinner(ctx context.Context, studentEmail string) error {
	winner, err := s.enrollments.FindByIdentity(ctx, studentEmail)
	if err != nil || winner == nil {
		return appErrors.AlreadyEnrolled("")
	}
	return appErrors.AlreadyEnrolled(s.resolver.Name(ctx, winner.InstitutionID))
}
