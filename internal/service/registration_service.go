package service

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dashboarder/enrollment-api/internal/models"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
)

// How long reviewed registrations linger before the reaper removes them.
// Approved rows have already produced their user account by then.
const DefaultRegistrationRetention = 12 * time.Hour

type registrationRepository interface {
	Create(ctx context.Context, registration *models.Registration) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Registration, error)
	ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.Registration, error)
	MarkReviewed(ctx context.Context, tx *sqlx.Tx, id string, status models.RegistrationStatus, reviewedAt time.Time, reviewerID string, notes *string) error
	DeleteReviewedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type registrationUserStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, user *models.User) error
}

// SubmitRegistrationRequest describes an instructor signup. The credential
// hash arrives pre-computed; hashing is the auth layer's concern.
type SubmitRegistrationRequest struct {
	Name           string  `json:"name" validate:"required"`
	Email          string  `json:"email" validate:"required,email"`
	PasswordHash   string  `json:"password_hash" validate:"required"`
	Bio            *string `json:"bio,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
	Education      *string `json:"education,omitempty"`
	Experience     *string `json:"experience,omitempty"`
}

// ReviewRegistrationRequest describes the one-shot review decision.
type ReviewRegistrationRequest struct {
	RegistrationID string  `json:"registration_id" validate:"required"`
	ReviewerID     string  `json:"reviewer_id" validate:"required"`
	Status         string  `json:"status" validate:"required,oneof=approved rejected"`
	ReviewNotes    *string `json:"review_notes,omitempty"`
}

// RegistrationService manages instructor registrations: signup, the single
// pending→approved/rejected transition, and the retention sweep that the
// reaper job invokes.
type RegistrationService struct {
	tx        txProvider
	repo      registrationRepository
	users     registrationUserStore
	retention time.Duration
	now       func() time.Time
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	// Shared by the scheduled job and the on-demand trigger: at most one
	// sweep is in flight per process, whichever path started it.
	sweeping atomic.Bool
}

// NewRegistrationService constructs RegistrationService. The clock is
// injectable so sweep boundaries are deterministic in tests.
func NewRegistrationService(tx txProvider, repo registrationRepository, users registrationUserStore, retention time.Duration, now func() time.Time, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if retention <= 0 {
		retention = DefaultRegistrationRetention
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		tx:        tx,
		repo:      repo,
		users:     users,
		retention: retention,
		now:       now,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Submit records a new pending registration.
func (s *RegistrationService) Submit(ctx context.Context, req SubmitRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	exists, err := s.users.ExistsByEmail(ctx, models.NormalizeIdentity(req.Email).String())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to check existing accounts")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account already exists with this email")
	}

	registration := &models.Registration{
		Name:           req.Name,
		Email:          models.NormalizeIdentity(req.Email).String(),
		PasswordHash:   req.PasswordHash,
		Bio:            req.Bio,
		Phone:          req.Phone,
		Specialization: req.Specialization,
		Education:      req.Education,
		Experience:     req.Experience,
		Status:         models.RegistrationStatusPending,
		SubmittedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to create registration")
	}
	s.logger.Sugar().Infow("instructor registration submitted", "registration_id", registration.ID, "email", registration.Email)
	return registration, nil
}

// ListPending returns registrations awaiting review.
func (s *RegistrationService) ListPending(ctx context.Context) ([]models.Registration, error) {
	registrations, err := s.repo.ListByStatus(ctx, models.RegistrationStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to list registrations")
	}
	return registrations, nil
}

// Review applies the single defined transition away from pending. Approval
// materializes the instructor's user account from the stored credential hash
// in the same transaction that stamps the review; any other target status is
// invalid input. A registration that already left pending is never moved
// again.
func (s *RegistrationService) Review(ctx context.Context, req ReviewRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be approved or rejected")
	}
	status := models.RegistrationStatus(req.Status)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to open review transaction")
	}
	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback()
		}
	}()

	registration, err := s.repo.FindForUpdate(ctx, tx, req.RegistrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load registration")
	}
	if registration.Status != models.RegistrationStatusPending {
		return nil, appErrors.ErrRegistrationReviewed
	}

	if status == models.RegistrationStatusApproved {
		exists, err := s.users.ExistsByEmail(ctx, registration.Email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to check existing accounts")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an account already exists with this email")
		}
		user := &models.User{
			Email:        registration.Email,
			PasswordHash: registration.PasswordHash,
			Name:         registration.Name,
			Role:         models.RoleInstructor,
			Active:       true,
		}
		if err := s.users.Create(ctx, tx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to create instructor account")
		}
	}

	reviewedAt := s.now()
	if err := s.repo.MarkReviewed(ctx, tx, registration.ID, status, reviewedAt, req.ReviewerID, req.ReviewNotes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to record review")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to commit review")
	}
	finished = true

	registration.Status = status
	registration.ReviewedAt = &reviewedAt
	registration.ReviewedBy = &req.ReviewerID
	registration.ReviewNotes = req.ReviewNotes

	s.logger.Sugar().Infow("instructor registration reviewed",
		"registration_id", registration.ID,
		"status", status,
		"reviewer_id", req.ReviewerID,
	)
	return registration, nil
}

// Sweep deletes terminal registrations whose review is older than the
// retention window and returns the count. Zero deletions is success. A
// sweep already in flight, started by either the scheduler or a previous
// on-demand trigger, refuses the call with a conflict instead of running
// concurrently. The reaper job wraps this and swallows errors at the
// scheduling boundary.
func (s *RegistrationService) Sweep(ctx context.Context) (int64, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, appErrors.Clone(appErrors.ErrConflict, "a registration sweep is already in flight")
	}
	defer s.sweeping.Store(false)

	started := time.Now()
	cutoff := s.now().Add(-s.retention)

	deleted, err := s.repo.DeleteReviewedBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to sweep registrations")
	}

	s.metrics.RecordSweep(deleted, time.Since(started))
	if deleted > 0 {
		s.logger.Sugar().Infow("swept reviewed registrations", "deleted", deleted, "cutoff", cutoff)
	} else {
		s.logger.Sugar().Debugw("sweep found nothing to delete", "cutoff", cutoff)
	}
	return deleted, nil
}

// SweepTask adapts Sweep to the periodic job contract. Losing the guard to
// an on-demand sweep is a skip, not a failure.
func (s *RegistrationService) SweepTask() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		if errors.Is(err, appErrors.ErrConflict) {
			return nil
		}
		return err
	}
}
