package routes

import (
	"net/http"

	"franchise-dispatch-api/controllers"
	"franchise-dispatch-api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, jwtSecret string) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Franchise Dispatch API is running",
				})
			})

			// Intake form heartbeats
			intake := public.Group("/intake/sessions")
			{
				intake.POST("", controllers.StartIntakeSession)
				intake.POST("/:id/heartbeat", controllers.IntakeHeartbeat)
				intake.POST("/:id/complete", controllers.CompleteIntakeSession)
			}
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			merchant := protected.Group("/merchant")
			merchant.Use(middleware.RequireRole(middleware.RoleMerchant))
			{
				merchant.GET("/deliveries", controllers.GetMyDeliveries)
				merchant.PUT("/deliveries/:caseId/status", controllers.UpdateDeliveryStatus)
				merchant.POST("/deliveries/:caseId/contacts", controllers.RecordContact)

				merchant.GET("/cancellations/eligible", controllers.GetCancelableCases)
				merchant.POST("/cancellations", controllers.SubmitCancelReport)
				merchant.GET("/cancellations", controllers.GetMyCancellations)

				merchant.GET("/extensions/eligible", controllers.GetExtendableCases)
				merchant.POST("/extensions", controllers.SubmitExtension)
				merchant.GET("/extensions", controllers.GetMyExtensions)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(middleware.RoleAdmin))
			{
				admin.GET("/cancellations", controllers.ListCancellations)
				admin.POST("/cancellations/:id/approve", controllers.ApproveCancellation)
				admin.POST("/cancellations/:id/reject", controllers.RejectCancellation)

				admin.GET("/extensions", controllers.ListExtensions)
				admin.POST("/extensions/:id/approve", controllers.ApproveExtension)
				admin.POST("/extensions/:id/reject", controllers.RejectExtension)

				admin.POST("/merchants", controllers.CreateMerchant)
				admin.POST("/cases", controllers.CreateCase)
				admin.POST("/cases/:id/deliveries", controllers.DispatchCase)
				admin.POST("/cases/:id/redelivery", controllers.ScheduleRedelivery)
				admin.POST("/cases/:id/archive", controllers.ArchiveCase)
				admin.POST("/deliveries/:caseId/:merchantId/outcome", controllers.MarkDeliveryOutcome)

				admin.POST("/sweeps/:name/run", controllers.RunSweep)
			}
		}
	}

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"kind": "NotFound", "message": "Endpoint not found"},
		})
	})
}
