package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/faq-search/internal/infra/config"
	"github.com/yanqian/faq-search/internal/infra/ratelimit"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
// limiter may be nil to disable rate limiting.
func NewRouter(cfg *config.Config, handler *Handler, limiter ratelimit.Limiter, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With("component", "http.router")

	router := gin.New()
	router.SetHTMLTemplate(loadTemplates())
	router.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		requestLogger(logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(logger),
	)

	router.GET("/healthz", handler.Health)

	limited := router.Group("/", rateLimitMiddleware(limiter, logger))
	{
		limited.GET("/", handler.Index)
		limited.POST("/", handler.Index)
	}

	api := router.Group("/api/v1", rateLimitMiddleware(limiter, logger), authMiddleware(cfg.HTTP.Auth))
	{
		api.POST("/faq/search", handler.Search)
		api.GET("/faq/search", handler.SearchQuery)
		api.GET("/faq/catalog", handler.Catalog)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
