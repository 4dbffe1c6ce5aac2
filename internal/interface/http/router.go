package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evigrid/assess-console/internal/domain/auth"
	"github.com/evigrid/assess-console/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/healthz", handler.Healthz)

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
			authGroup.POST("/refresh", handler.Refresh)
			authGroup.GET("/google", handler.GoogleLogin)
			authGroup.GET("/google/callback", handler.GoogleCallback)
		}

		protected := api.Group("")
		protected.Use(authMiddleware(authSvc))
		{
			protected.GET("/me", handler.Profile)
			protected.POST("/logout", handler.Logout)

			protected.POST("/drafts", handler.CreateDraft)
			protected.GET("/drafts/:id", handler.GetDraft)
			protected.DELETE("/drafts/:id", handler.DeleteDraft)
			protected.PATCH("/drafts/:id/fields", handler.PatchFields)
			protected.POST("/drafts/:id/variant", handler.SwitchVariant)
			protected.POST("/drafts/:id/reset", handler.ResetDraft)
			protected.POST("/drafts/:id/files/:slot", handler.UploadSlotFile)
			protected.POST("/drafts/:id/files/:slot/validate", handler.ValidateSlot)
			protected.POST("/drafts/:id/submit", handler.SubmitDraft)

			protected.GET("/orders", handler.ListOrders)
			protected.GET("/orders/:id", handler.GetOrder)
			protected.POST("/orders/:id/status", handler.UpdateOrderStatus)

			protected.GET("/stats", handler.Stats)
		}
	}

	wrapped := withRetry(router, cfg.HTTP.Retry, handler.logger)

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        wrapped,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
