package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dashboarder/enrollment-api/internal/models"
	"github.com/dashboarder/enrollment-api/internal/repository"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
)

type applicationRepository interface {
	Create(ctx context.Context, application *models.Application) error
	ExistsPending(ctx context.Context, institutionID, studentEmail string) (bool, error)
	ListPending(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	DeleteByInstitution(ctx context.Context, id, institutionID string) (int64, error)
}

type enrollmentReader interface {
	FindByIdentity(ctx context.Context, studentEmail string) (*models.Enrollment, error)
}

// SubmitApplicationRequest describes a form submission.
type SubmitApplicationRequest struct {
	InstitutionID string                 `json:"institution_id" validate:"required"`
	FormID        string                 `json:"form_id" validate:"required"`
	Values        map[string]interface{} `json:"values" validate:"required"`
}

// ApplicationService handles the pending-application ledger: submissions,
// listings and rejections. Acceptance lives in AcceptanceService.
type ApplicationService struct {
	repo        applicationRepository
	enrollments enrollmentReader
	resolver    *institutionResolver
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, enrollments enrollmentReader, users institutionReader, cache lookupCache, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		repo:        repo,
		enrollments: enrollments,
		resolver:    &institutionResolver{users: users, cache: cache},
		validator:   validate,
		logger:      logger,
	}
}

// Submit records a new pending application. It refuses students who already
// hold an enrollment anywhere and duplicate pending applications to the same
// institution. Both pre-checks are advisory; the authoritative checks are
// the storage constraints and the acceptance-time lock.
func (s *ApplicationService) Submit(ctx context.Context, req SubmitApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	email := extractEmail(req.Values)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student email is required")
	}
	identity := models.NormalizeIdentity(email)

	enrollment, err := s.enrollments.FindByIdentity(ctx, identity.String())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to check existing enrollment")
	}
	if enrollment != nil {
		return nil, appErrors.AlreadyEnrolled(s.resolver.Name(ctx, enrollment.InstitutionID))
	}

	exists, err := s.repo.ExistsPending(ctx, req.InstitutionID, identity.String())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to check pending applications")
	}
	if exists {
		return nil, appErrors.ErrDuplicateApplication
	}

	payload, err := json.Marshal(req.Values)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "submission payload is not serializable")
	}

	application := &models.Application{
		InstitutionID: req.InstitutionID,
		FormID:        req.FormID,
		StudentEmail:  identity.String(),
		Status:        models.ApplicationStatusPending,
		SubmittedData: payload,
	}
	if name := extractStudentName(req.Values, identity.String()); name != "" {
		application.StudentName = &name
	}

	if err := s.repo.Create(ctx, application); err != nil {
		// Two racing submissions can both pass the pre-check; the unique
		// constraint on (institution, email) resolves the loser here.
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateApplication
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to create application")
	}

	s.logger.Sugar().Infow("application submitted",
		"application_id", application.ID,
		"institution_id", req.InstitutionID,
		"student_email", identity.String(),
	)
	return application, nil
}

// ListPending returns the institution's pending applications.
func (s *ApplicationService) ListPending(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	applications, total, err := s.repo.ListPending(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applications, pagination, nil
}

// Reject hard-deletes a pending application. It never touches the
// enrollment ledger, so it carries no race risk; a vanished application is
// reported as such rather than silently succeeding.
func (s *ApplicationService) Reject(ctx context.Context, institutionID, applicationID string) error {
	deleted, err := s.repo.DeleteByInstitution(ctx, applicationID, institutionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to reject application")
	}
	if deleted == 0 {
		return appErrors.ErrApplicationVanished
	}
	s.logger.Sugar().Infow("application rejected", "application_id", applicationID, "institution_id", institutionID)
	return nil
}
