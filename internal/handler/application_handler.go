package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dashboarder/enrollment-api/internal/models"
	"github.com/dashboarder/enrollment-api/internal/service"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
	"github.com/dashboarder/enrollment-api/pkg/response"
)

type applicationService interface {
	Submit(ctx context.Context, req service.SubmitApplicationRequest) (*models.Application, error)
	ListPending(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error)
	Reject(ctx context.Context, institutionID, applicationID string) error
}

type acceptanceService interface {
	Accept(ctx context.Context, institutionID, applicationID string) (*models.Enrollment, error)
}

// ApplicationHandler exposes the application endpoints: the public form
// submission plus the institution-side list, accept and reject operations.
type ApplicationHandler struct {
	applications applicationService
	acceptance   acceptanceService
}

// NewApplicationHandler constructs ApplicationHandler.
func NewApplicationHandler(applications applicationService, acceptance acceptanceService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, acceptance: acceptance}
}

// Submit accepts a public form submission. The body is the raw field map
// the form produced; institution and form come from the URL.
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var values map[string]interface{}
	if err := c.ShouldBindJSON(&values); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "request body must be a JSON object"))
		return
	}

	application, err := h.applications.Submit(c.Request.Context(), service.SubmitApplicationRequest{
		InstitutionID: c.Param("institutionId"),
		FormID:        c.Param("formId"),
		Values:        values,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, application)
}

// List returns the institution's pending applications.
func (h *ApplicationHandler) List(c *gin.Context) {
	filter := models.ApplicationFilter{InstitutionID: c.Param("institutionId")}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	applications, pagination, err := h.applications.ListPending(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, pagination)
}

// Accept enrolls the applicant. Conflict outcomes surface as typed errors:
// ALREADY_ENROLLED names the winning institution, APPLICATION_VANISHED means
// another actor processed the application first.
func (h *ApplicationHandler) Accept(c *gin.Context) {
	enrollment, err := h.acceptance.Accept(c.Request.Context(), c.Param("institutionId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Reject deletes the pending application.
func (h *ApplicationHandler) Reject(c *gin.Context) {
	if err := h.applications.Reject(c.Request.Context(), c.Param("institutionId"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
