package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dashboarder/enrollment-api/internal/models"
	"github.com/dashboarder/enrollment-api/internal/service"
	appErrors "github.com/dashboarder/enrollment-api/pkg/errors"
	"github.com/dashboarder/enrollment-api/pkg/response"
)

type registrationService interface {
	Submit(ctx context.Context, req service.SubmitRegistrationRequest) (*models.Registration, error)
	ListPending(ctx context.Context) ([]models.Registration, error)
	Review(ctx context.Context, req service.ReviewRegistrationRequest) (*models.Registration, error)
	Sweep(ctx context.Context) (int64, error)
}

// RegistrationHandler exposes instructor-registration endpoints: the public
// signup, the admin review queue and the on-demand cleanup trigger.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Submit records a new instructor registration.
func (h *RegistrationHandler) Submit(c *gin.Context) {
	var req service.SubmitRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	registration, err := h.registrations.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// ListPending returns registrations awaiting review.
func (h *RegistrationHandler) ListPending(c *gin.Context) {
	registrations, err := h.registrations.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}

// Review approves or rejects a pending registration. The registration ID
// comes from the URL, the decision from the body.
func (h *RegistrationHandler) Review(c *gin.Context) {
	var req service.ReviewRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	req.RegistrationID = c.Param("id")

	registration, err := h.registrations.Review(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Cleanup runs the retention sweep immediately instead of waiting for the
// next scheduled run.
func (h *RegistrationHandler) Cleanup(c *gin.Context) {
	deleted, err := h.registrations.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}
