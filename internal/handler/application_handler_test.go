package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashboarder/enrollment-api/internal/models"
	"github.com/dashboarder/enrollment-api/internal/service"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
	"github.com/dashboarder/enrollment-api/pkg/response"
)

type applicationServiceMock struct {
	submitResp *models.Application
	submitErr  error
	listResp   []models.Application
	rejectErr  error

	gotSubmit service.SubmitApplicationRequest
}

func (m *applicationServiceMock) Submit(_ context.Context, req service.SubmitApplicationRequest) (*models.Application, error) {
	m.gotSubmit = req
	return m.submitResp, m.submitErr
}

func (m *applicationServiceMock) ListPending(_ context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	return m.listResp, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(m.listResp)}, nil
}

func (m *applicationServiceMock) Reject(_ context.Context, _, _ string) error {
	return m.rejectErr
}

type acceptanceServiceMock struct {
	resp *models.Enrollment
	err  error
}

func (m *acceptanceServiceMock) Accept(_ context.Context, _, _ string) (*models.Enrollment, error) {
	return m.resp, m.err
}

func newTestRouter(applications applicationService, acceptance acceptanceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r,
		NewApplicationHandler(applications, acceptance),
		NewEnrollmentHandler(&enrollmentServiceMock{}),
		NewRegistrationHandler(&registrationServiceMock{}),
	)
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestApplicationHandlerSubmit(t *testing.T) {
	mock := &applicationServiceMock{submitResp: &models.Application{ID: "app-1", StudentEmail: "ada@example.com"}}
	r := newTestRouter(mock, &acceptanceServiceMock{})

	body, _ := json.Marshal(map[string]interface{}{"email": "ada@example.com", "grade": "10"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/public/forms/inst-1/form-1/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "inst-1", mock.gotSubmit.InstitutionID)
	assert.Equal(t, "form-1", mock.gotSubmit.FormID)
	assert.Equal(t, "ada@example.com", mock.gotSubmit.Values["email"])
}

func TestApplicationHandlerSubmitInvalidBody(t *testing.T) {
	r := newTestRouter(&applicationServiceMock{}, &acceptanceServiceMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/public/forms/inst-1/form-1/submit", bytes.NewReader([]byte(`not json`)))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
}

func TestApplicationHandlerAcceptConflict(t *testing.T) {
	acceptance := &acceptanceServiceMock{err: appErrors.AlreadyEnrolled("Northwind Academy")}
	r := newTestRouter(&applicationServiceMock{}, acceptance)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/institutions/inst-1/applications/app-1/accept", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_ENROLLED", env.Error.Code)
	assert.Contains(t, env.Error.Message, "Northwind Academy")
}

func TestApplicationHandlerAcceptVanished(t *testing.T) {
	acceptance := &acceptanceServiceMock{err: appErrors.ErrApplicationVanished}
	r := newTestRouter(&applicationServiceMock{}, acceptance)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/institutions/inst-1/applications/app-gone/accept", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "APPLICATION_VANISHED", env.Error.Code)
}

func TestApplicationHandlerAcceptCreated(t *testing.T) {
	acceptance := &acceptanceServiceMock{resp: &models.Enrollment{ID: "enr-1", StudentID: "STD1234"}}
	r := newTestRouter(&applicationServiceMock{}, acceptance)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/institutions/inst-1/applications/app-1/accept", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestApplicationHandlerReject(t *testing.T) {
	r := newTestRouter(&applicationServiceMock{}, &acceptanceServiceMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/institutions/inst-1/applications/app-1/reject", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestApplicationHandlerList(t *testing.T) {
	mock := &applicationServiceMock{listResp: []models.Application{{ID: "app-1"}, {ID: "app-2"}}}
	r := newTestRouter(mock, &acceptanceServiceMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/institutions/inst-1/applications?page=2&limit=5", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.Equal(t, 5, env.Pagination.PageSize)
}
