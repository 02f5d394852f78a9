package http

import "github.com/gin-gonic/gin"

func RegisterReportRoutes(r *gin.Engine, handler *ReportHandler) {
	relatorios := r.Group("/api/relatorios")
	{
		relatorios.POST("/solicitar/:nome", handler.SolicitarRelatorio)
		relatorios.GET("/", handler.ListarRelatorios)
		relatorios.GET("/:id", handler.ObterRelatorio)
		relatorios.GET("/status/:status", handler.ListarPorStatus)
	}
}
