package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the API surface on the router.
//
// Public routes take unauthenticated traffic from form embeds and the
// signup page. Institution and admin routes assume an authenticating proxy
// in front of the service; the engine itself stays auth-agnostic.
func RegisterRoutes(r *gin.Engine, applications *ApplicationHandler, enrollments *EnrollmentHandler, registrations *RegistrationHandler) {
	public := r.Group("/api/public")
	{
		public.POST("/forms/:institutionId/:formId/submit", applications.Submit)
		public.POST("/instructor-registrations", registrations.Submit)
	}

	institutions := r.Group("/api/institutions/:institutionId")
	{
		institutions.GET("/applications", applications.List)
		institutions.POST("/applications/:id/accept", applications.Accept)
		institutions.POST("/applications/:id/reject", applications.Reject)

		institutions.GET("/enrollments", enrollments.List)
		institutions.GET("/enrollments/:id", enrollments.Get)
		institutions.PUT("/enrollments/:id", enrollments.Update)
		institutions.DELETE("/enrollments/:id", enrollments.Remove)

		institutions.DELETE("", enrollments.DeleteInstitution)
	}

	admin := r.Group("/api/admin")
	{
		admin.GET("/registrations", registrations.ListPending)
		admin.POST("/registrations/:id/review", registrations.Review)
		admin.POST("/cleanup-registrations", registrations.Cleanup)
	}
}
