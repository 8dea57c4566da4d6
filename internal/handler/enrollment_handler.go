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

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error)
	Get(ctx context.Context, institutionID, id string) (*models.Enrollment, error)
	Update(ctx context.Context, institutionID, id string, req service.UpdateEnrollmentRequest) (*models.Enrollment, error)
	RemoveStudent(ctx context.Context, institutionID, id string) error
	DeleteInstitution(ctx context.Context, institutionID string) error
}

// EnrollmentHandler exposes the institution-side enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List returns the institution's enrollments.
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		InstitutionID: c.Param("institutionId"),
		Status:        models.EnrollmentStatus(c.Query("status")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get returns one enrollment.
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("institutionId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Update applies staff edits to an enrollment record.
func (h *EnrollmentHandler) Update(c *gin.Context) {
	var req service.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	enrollment, err := h.enrollments.Update(c.Request.Context(), c.Param("institutionId"), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Remove deletes an enrollment, releasing the student's identity.
func (h *EnrollmentHandler) Remove(c *gin.Context) {
	if err := h.enrollments.RemoveStudent(c.Request.Context(), c.Param("institutionId"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteInstitution removes an institution account once it holds no active
// enrollments.
func (h *EnrollmentHandler) DeleteInstitution(c *gin.Context) {
	if err := h.enrollments.DeleteInstitution(c.Request.Context(), c.Param("institutionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
