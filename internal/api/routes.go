package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// Same-origin file proxy used by the export pipeline
	router.GET("/api/file-proxy", handler.FileProxy)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/exports/all", handler.TriggerExportAll)
		v1.POST("/exports/selected", handler.TriggerExportSelected)
		v1.GET("/exports/:job_id", handler.GetExportJob)
		v1.GET("/exports/:job_id/download", handler.DownloadExport)
		v1.DELETE("/exports/:job_id", handler.DeleteExportJob)

		v1.GET("/grading-groups/flat", handler.ListFlatGradingGroups)
		v1.DELETE("/grading-groups/:id", handler.DeleteGradingGroup)
	}
}
