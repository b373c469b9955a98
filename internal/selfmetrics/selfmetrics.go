// Package selfmetrics exposes the four services' own Prometheus metrics on
// /metrics, the exporter side of the teacher's client_golang/client_model
// dependency family (SPEC_FULL.md §2).
package selfmetrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitorflow_records_processed_total",
		Help: "Metric records the processing service has consumed from metrics.raw.",
	})

	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitorflow_alerts_triggered_total",
		Help: "Alerts the Alert Engine has transitioned into the ACTIVE state.",
	}, []string{"severity"})

	AlertsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitorflow_alerts_resolved_total",
		Help: "Alerts the Alert Engine has transitioned out of the ACTIVE state.",
	}, []string{"severity"})

	CacheFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitorflow_cache_fallbacks_total",
		Help: "Cache operations that degraded to a no-op because Redis was unavailable.",
	})

	ThrottleSuppressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitorflow_notifications_suppressed_total",
		Help: "Alert notifications suppressed by the duplicate window or hourly rate limit.",
	})
)

// Register mounts /metrics on router, matching the teacher's promhttp.Handler
// wiring in mock-s3-storage's telemetry package.
func Register(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
