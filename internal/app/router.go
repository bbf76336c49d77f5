package app

import (
	"olimpo_backend/docs"
	"olimpo_backend/internal/config"
	"olimpo_backend/internal/middleware"
	"olimpo_backend/internal/model"
	"olimpo_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerParticipantRoutes(authGroup, c)
		a.registerStaffRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}
}

func (a *App) registerParticipantRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/evaluations", c.evaluation.List)
	rg.GET("/evaluations/:id", c.evaluation.Get)
	rg.GET("/evaluations/:id/ranking", c.evaluation.GetRanking)

	// Exam session: eligibility probe, question subset, live channel.
	rg.GET("/evaluations/:id/eligibility", c.exam.GetEligibility)
	rg.GET("/evaluations/:id/questions", middleware.RoleMiddleware(model.Participante), c.exam.GetQuestions)
	rg.GET("/ws/exam/:evaluationId", middleware.RoleMiddleware(model.Participante), c.exam.HandleWS)
}

func (a *App) registerStaffRoutes(rg *gin.RouterGroup, c *controllers) {
	staff := rg.Group("")
	staff.Use(middleware.RoleMiddleware(model.Admin, model.Jurado))
	{
		// Live monitoring channel plus its REST fallbacks.
		staff.GET("/ws/monitor/:evaluationId", c.monitor.HandleWS)
		staff.GET("/evaluations/:id/monitor", c.monitor.GetSnapshot)
		staff.POST("/evaluations/:id/sessions/:participantId/suspend", c.monitor.SuspendSession)
		staff.POST("/evaluations/:id/sessions/:participantId/reactivate", c.monitor.ReactivateSession)

		staff.GET("/stages/:stage/advancement", c.evaluation.GetAdvancement)
		staff.GET("/evaluations/:id/consistency", c.evaluation.GetConsistency)
		staff.GET("/evaluations/:id/participants/:participantId/quota", c.evaluation.GetQuota)
		staff.PUT("/evaluations/:id/participants/:participantId/quota", middleware.RoleMiddleware(model.Admin), c.evaluation.SetQuota)
	}
}
