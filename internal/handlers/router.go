package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/skills-assessment-service/internal/services"
	"github.com/SAP-F-2025/skills-assessment-service/internal/utils"
	"github.com/SAP-F-2025/skills-assessment-service/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	resultHandler  *ResultHandler
	auth           TokenParser
}

// NewHandlerManager builds the HTTP handlers. frames and auth are optional:
// a nil frames sink disables uploads and a nil auth leaves routes open.
func NewHandlerManager(
	sessionService services.SessionService,
	resultService services.ResultService,
	frames FrameSink,
	auth TokenParser,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(sessionService, frames, validator, logger),
		resultHandler:  NewResultHandler(resultService, logger),
		auth:           auth,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "skills-assessment-service",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if hm.auth != nil {
		v1.Use(AuthMiddleware(hm.auth))
	}
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.Abort)
			sessions.POST("/:id/tick", hm.sessionHandler.Tick)
			sessions.PUT("/:id/answers/:index", hm.sessionHandler.SelectAnswer)
			sessions.POST("/:id/next", hm.sessionHandler.Next)
			sessions.POST("/:id/previous", hm.sessionHandler.Previous)
			sessions.POST("/:id/submit", hm.sessionHandler.Submit)
			sessions.POST("/:id/frames", hm.sessionHandler.PushFrame)
		}

		results := v1.Group("/results")
		{
			results.GET("", hm.resultHandler.ListResults)
			results.GET("/export", hm.resultHandler.ExportResults)
			results.GET("/:application_id", hm.resultHandler.GetResult)
		}
	}
}
