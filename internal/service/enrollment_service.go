package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dashboarder/enrollment-api/internal/models"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id, institutionID string) (int64, error)
	CountActiveByInstitution(ctx context.Context, institutionID string) (int, error)
}

type institutionStore interface {
	FindInstitution(ctx context.Context, id string) (*models.Institution, error)
	DeleteInstitution(ctx context.Context, id string) (int64, error)
}

// UpdateEnrollmentRequest carries the staff-editable enrollment fields.
// Nil fields are left untouched.
type UpdateEnrollmentRequest struct {
	StudentName *string `json:"student_name,omitempty"`
	Grade       *string `json:"grade,omitempty"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=active graduated suspended"`
}

// EnrollmentService covers the staff operations on existing enrollments:
// listing, record edits, removal, and the institution-deletion guard.
// Creating enrollments is the acceptance coordinator's job alone.
type EnrollmentService struct {
	repo         enrollmentRepository
	institutions institutionStore
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, institutions institutionStore, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:         repo,
		institutions: institutions,
		validator:    validate,
		logger:       logger,
	}
}

// List returns an institution's enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to list enrollments")
	}
	pagination := &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	}
	return enrollments, pagination, nil
}

// Get returns a single enrollment owned by the institution.
func (s *EnrollmentService) Get(ctx context.Context, institutionID, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load enrollment")
	}
	if enrollment == nil || enrollment.InstitutionID != institutionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return enrollment, nil
}

// Update applies staff edits to an enrollment record. Status changes are
// restricted to the known lifecycle values; moving to graduated stamps
// graduated_at, moving back to active clears it.
func (s *EnrollmentService) Update(ctx context.Context, institutionID, id string, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be one of active, graduated, suspended")
	}

	enrollment, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}

	if req.StudentName != nil && *req.StudentName != "" {
		enrollment.StudentName = *req.StudentName
	}
	if req.Grade != nil {
		enrollment.Grade = req.Grade
	}
	if req.Status != nil {
		status := models.EnrollmentStatus(*req.Status)
		if status != enrollment.Status {
			switch status {
			case models.EnrollmentStatusGraduated:
				now := time.Now().UTC()
				enrollment.GraduatedAt = &now
			case models.EnrollmentStatusActive:
				enrollment.GraduatedAt = nil
			}
			enrollment.Status = status
		}
	}

	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to update enrollment")
	}
	s.logger.Sugar().Infow("enrollment updated", "enrollment_id", enrollment.ID, "institution_id", institutionID, "status", enrollment.Status)
	return enrollment, nil
}

// RemoveStudent deletes an enrollment, releasing the student's identity so
// they can apply and enroll elsewhere.
func (s *EnrollmentService) RemoveStudent(ctx context.Context, institutionID, id string) error {
	deleted, err := s.repo.Delete(ctx, id, institutionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to remove enrollment")
	}
	if deleted == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	s.logger.Sugar().Infow("enrollment removed", "enrollment_id", id, "institution_id", institutionID)
	return nil
}

// DeleteInstitution removes an institution account. Deletion is refused
// while the institution still has active enrollments so students are never
// orphaned mid-enrollment.
func (s *EnrollmentService) DeleteInstitution(ctx context.Context, institutionID string) error {
	active, err := s.repo.CountActiveByInstitution(ctx, institutionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to count active enrollments")
	}
	if active > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "institution still has active enrollments; transfer or remove them first")
	}

	deleted, err := s.institutions.DeleteInstitution(ctx, institutionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to delete institution")
	}
	if deleted == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "institution not found")
	}
	s.logger.Sugar().Infow("institution deleted", "institution_id", institutionID)
	return nil
}
