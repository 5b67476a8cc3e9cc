package api

import "github.com/gin-gonic/gin"

// SetupRoutes registers all API endpoints on a router.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("", handler.Root)

		api.POST("/properties", handler.CreateProperty)
		api.GET("/properties", handler.GetProperties)
		api.GET("/properties/:id", handler.GetProperty)
		api.PUT("/properties/:id/update-rp-data", handler.UpdateRPData)

		api.POST("/properties/:id/evaluate", handler.EvaluateProperty)
		api.GET("/properties/:id/evaluation-status", handler.EvaluationStatus)
		api.POST("/properties/:id/generate-pitch", handler.GeneratePitch)

		api.POST("/evaluate-quick", handler.QuickEvaluate)
		api.GET("/evaluate-quick/:job_id/status", handler.QuickEvaluationStatus)

		api.GET("/api-settings", handler.GetAPISettings)
		api.POST("/api-settings", handler.SaveAPISettings)

		api.GET("/notifier-config", handler.GetNotifierConfig)
		api.POST("/notifier-config", handler.UpdateNotifierConfig)
	}
}
