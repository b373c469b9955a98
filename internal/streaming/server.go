package streaming

import (
	"context"
	"encoding/json"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/logbus"
	"github.com/qiniu/monitorflow/internal/middleware"
	"github.com/qiniu/monitorflow/internal/selfmetrics"
)

// BuildRouter assembles the streaming service's gin router: permissive CORS
// on /api/**, request logging and recovery, and the SSE routes.
func BuildRouter(s *Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.Authentication)

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsCfg))

	router.GET("/api/metrics/health", Health)
	selfmetrics.Register(router)
	s.Register(router)
	return router
}

// StartTopicHubs subscribes the two shared upstream consumers with
// offset-reset=latest (they must never replay history to live dashboards)
// and runs them until ctx is cancelled.
func StartTopicHubs(ctx context.Context, metricsConsumer, alertsConsumer logbus.Consumer, s *Server) {
	go s.Metrics.RunSource(ctx, metricsConsumer, decodeMetric)
	go s.Alerts.RunSource(ctx, alertsConsumer, decodeAlert)
	log.Info().Msg("streaming: topic hubs started")
}

func decodeMetric(payload []byte) (any, error) {
	var m eventbus.MetricEvent
	err := json.Unmarshal(payload, &m)
	return m, err
}

func decodeAlert(payload []byte) (any, error) {
	var a eventbus.AlertEvent
	err := json.Unmarshal(payload, &a)
	return a, err
}
