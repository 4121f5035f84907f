package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanqian/evaluator-ai/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = 32 << 20
	router.SetHTMLTemplate(playgroundTemplate)
	router.Use(
		gin.Recovery(),
		requestLogger(logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, logger),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/playground", handler.PlaygroundPage)

	api := router.Group("/api/v1")
	{
		api.GET("/config/defaults", handler.ConfigDefaults)
		api.GET("/config/options", handler.ConfigOptions)
		api.GET("/prompts/grading", handler.GradingPrompt)
		api.POST("/playground/sessions", handler.CreateSession)
	}

	session := api.Group("/playground/sessions/:id", sessionAuthMiddleware(handler.svc))
	{
		session.GET("", handler.GetSession)
		session.DELETE("", handler.EndSession)
		session.PATCH("/config", handler.PatchConfig)
		session.POST("/config/reset", handler.ResetConfig)
		session.POST("/files", handler.UploadFiles)
		session.DELETE("/files/:fileId", handler.RemoveFile)
		session.POST("/nav/toggle", handler.ToggleNav)
		session.POST("/viewport", handler.ReportViewport)
		session.POST("/runs", handler.SubmitRun)
		session.GET("/runs", handler.ListRuns)
		session.GET("/runs/:runId", handler.GetRun)
		session.GET("/runs/:runId/stream", handler.StreamRun)
		session.POST("/runs/:runId/cancel", handler.CancelRun)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
