package routes

import (
	"fundametrics/controllers"

	"github.com/gin-gonic/gin"
)

func Routes(r *gin.Engine) {

	v1 := r.Group("/api")

	{
		v1.GET("/keepServerRunning", controllers.HealthController.IsRunning)
		v1.GET("/companies", controllers.MetricsController.ListCompanies)
		v1.GET("/metrics", controllers.MetricsController.GetCompanyMetrics)
		v1.GET("/ratios", controllers.MetricsController.GetCompanyRatios)
		v1.POST("/recompute", controllers.MetricsController.RecomputeCompany)
		v1.POST("/recomputeAll", controllers.MetricsController.RecomputeAll)
		v1.GET("/exportXlsx", controllers.ExportController.ExportXLSX)
	}
}
