package ingestion

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/qiniu/monitorflow/internal/middleware"
	"github.com/qiniu/monitorflow/internal/selfmetrics"
)

// BuildRouter assembles the ingestion service's gin router, matching the
// teacher's middleware chain (Logger, Recovery, permissive CORS) plus the
// per-IP ingress rate limiter spec.md §4.1 requires.
func BuildRouter(h *Handler, limiter *middleware.IngestLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.Authentication)

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsCfg))

	router.GET("/api/metrics/health", h.Health)
	selfmetrics.Register(router)

	limited := router.Group("/api/metrics")
	limited.Use(limiter.Handler())
	limited.POST("", h.IngestOne)
	limited.POST("/batch", h.IngestBatch)
	return router
}
