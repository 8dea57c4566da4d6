package service

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashboarder/enrollment-api/internal/models"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
)

type mockApplicationRepo struct {
	create        func(ctx context.Context, application *models.Application) error
	existsPending func(ctx context.Context, institutionID, studentEmail string) (bool, error)
	listPending   func(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	deleteByInst  func(ctx context.Context, id, institutionID string) (int64, error)
}

func (m *mockApplicationRepo) Create(ctx context.Context, application *models.Application) error {
	return m.create(ctx, application)
}

func (m *mockApplicationRepo) ExistsPending(ctx context.Context, institutionID, studentEmail string) (bool, error) {
	if m.existsPending == nil {
		return false, nil
	}
	return m.existsPending(ctx, institutionID, studentEmail)
}

func (m *mockApplicationRepo) ListPending(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	return m.listPending(ctx, filter)
}

func (m *mockApplicationRepo) DeleteByInstitution(ctx context.Context, id, institutionID string) (int64, error) {
	return m.deleteByInst(ctx, id, institutionID)
}

type mockEnrollmentReader struct {
	findByIdentity func(ctx context.Context, studentEmail string) (*models.Enrollment, error)
}

func (m *mockEnrollmentReader) FindByIdentity(ctx context.Context, studentEmail string) (*models.Enrollment, error) {
	if m.findByIdentity == nil {
		return nil, nil
	}
	return m.findByIdentity(ctx, studentEmail)
}

func submitRequest(values map[string]interface{}) SubmitApplicationRequest {
	return SubmitApplicationRequest{
		InstitutionID: "inst-1",
		FormID:        "form-1",
		Values:        values,
	}
}

func TestApplicationServiceSubmit(t *testing.T) {
	var created *models.Application
	repo := &mockApplicationRepo{
		create: func(_ context.Context, application *models.Application) error {
			created = application
			return nil
		},
	}
	svc := NewApplicationService(repo, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	application, err := svc.Submit(context.Background(), submitRequest(map[string]interface{}{
		"email":     "  Ada@Example.COM ",
		"full_name": "Ada Lovelace",
		"grade":     "10",
	}))

	require.NoError(t, err)
	assert.Same(t, created, application)
	assert.Equal(t, "ada@example.com", application.StudentEmail)
	assert.Equal(t, models.ApplicationStatusPending, application.Status)
	require.NotNil(t, application.StudentName)
	assert.Equal(t, "Ada Lovelace", *application.StudentName)
	assert.JSONEq(t, `{"email":"  Ada@Example.COM ","full_name":"Ada Lovelace","grade":"10"}`, string(application.SubmittedData))
}

func TestApplicationServiceSubmitMissingEmail(t *testing.T) {
	svc := NewApplicationService(&mockApplicationRepo{}, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	_, err := svc.Submit(context.Background(), submitRequest(map[string]interface{}{"full_name": "No Email"}))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestApplicationServiceSubmitAlreadyEnrolled(t *testing.T) {
	enrollments := &mockEnrollmentReader{
		findByIdentity: func(_ context.Context, studentEmail string) (*models.Enrollment, error) {
			require.Equal(t, "ada@example.com", studentEmail)
			return &models.Enrollment{ID: "enr-1", InstitutionID: "inst-2"}, nil
		},
	}
	institutions := &mockInstitutionReader{names: map[string]string{"inst-2": "Northwind Academy"}}
	svc := NewApplicationService(&mockApplicationRepo{}, enrollments, institutions, nil, nil, nil)

	_, err := svc.Submit(context.Background(), submitRequest(map[string]interface{}{"email": "ada@example.com"}))

	assert.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)
	assert.Contains(t, err.Error(), "Northwind Academy")
}

func TestApplicationServiceSubmitDuplicatePending(t *testing.T) {
	repo := &mockApplicationRepo{
		existsPending: func(_ context.Context, institutionID, studentEmail string) (bool, error) {
			require.Equal(t, "inst-1", institutionID)
			require.Equal(t, "ada@example.com", studentEmail)
			return true, nil
		},
	}
	svc := NewApplicationService(repo, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	_, err := svc.Submit(context.Background(), submitRequest(map[string]interface{}{"email": "ada@example.com"}))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateApplication)
}

func TestApplicationServiceSubmitUniqueViolationRace(t *testing.T) {
	repo := &mockApplicationRepo{
		create: func(_ context.Context, _ *models.Application) error {
			return &pq.Error{Code: "23505", Constraint: "applications_institution_id_student_email_key"}
		},
	}
	svc := NewApplicationService(repo, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	_, err := svc.Submit(context.Background(), submitRequest(map[string]interface{}{"email": "ada@example.com"}))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateApplication)
}

func TestApplicationServiceListPending(t *testing.T) {
	repo := &mockApplicationRepo{
		listPending: func(_ context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
			require.Equal(t, "inst-1", filter.InstitutionID)
			return []models.Application{{ID: "app-1"}, {ID: "app-2"}}, 12, nil
		},
	}
	svc := NewApplicationService(repo, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	applications, pagination, err := svc.ListPending(context.Background(), models.ApplicationFilter{InstitutionID: "inst-1"})

	require.NoError(t, err)
	assert.Len(t, applications, 2)
	assert.Equal(t, 12, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestApplicationServiceReject(t *testing.T) {
	repo := &mockApplicationRepo{
		deleteByInst: func(_ context.Context, id, institutionID string) (int64, error) {
			require.Equal(t, "app-1", id)
			require.Equal(t, "inst-1", institutionID)
			return 1, nil
		},
	}
	svc := NewApplicationService(repo, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	assert.NoError(t, svc.Reject(context.Background(), "inst-1", "app-1"))
}

func TestApplicationServiceRejectVanished(t *testing.T) {
	repo := &mockApplicationRepo{
		deleteByInst: func(_ context.Context, _, _ string) (int64, error) {
			return 0, nil
		},
	}
	svc := NewApplicationService(repo, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	err := svc.Reject(context.Background(), "inst-1", "app-gone")
	assert.ErrorIs(t, err, appErrors.ErrApplicationVanished)
}

func TestApplicationServiceRejectStoreError(t *testing.T) {
	repo := &mockApplicationRepo{
		deleteByInst: func(_ context.Context, _, _ string) (int64, error) {
			return 0, errors.New("connection reset")
		},
	}
	svc := NewApplicationService(repo, &mockEnrollmentReader{}, &mockInstitutionReader{}, nil, nil, nil)

	err := svc.Reject(context.Background(), "inst-1", "app-1")
	assert.ErrorIs(t, err, appErrors.ErrStoreUnavailable)
}
