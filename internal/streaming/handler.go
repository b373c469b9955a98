package streaming

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/qiniu/monitorflow/internal/eventbus"
)

// Server holds the three shared hubs (metrics, alerts, latest metrics) and
// the streaming HTTP routes (SPEC_FULL.md §14).
type Server struct {
	Metrics              *Hub
	Alerts                *Hub
	LatestMetrics         *Hub
	HeartbeatIntervalSecs int
}

// Register wires the documented streaming routes onto router.
func (s *Server) Register(router *gin.Engine) {
	router.GET("/api/stream/metrics", s.streamMetrics(""))
	router.GET("/api/stream/metrics/:service", func(c *gin.Context) {
		s.streamMetrics(c.Param("service"))(c)
	})
	router.GET("/api/stream/metrics/latest", s.streamLatestMetrics)
	router.GET("/api/stream/metrics/combined", s.streamCombinedMetrics)
	router.GET("/api/stream/metrics/heartbeat", s.streamHeartbeat)
	router.GET("/api/stream/alerts", s.streamAlerts(""))
	router.GET("/api/stream/alerts/:service", func(c *gin.Context) {
		s.streamAlerts(c.Param("service"))(c)
	})
	router.GET("/api/stream/alerts/active", s.streamActiveAlerts)
	router.GET("/api/stream/alerts/critical", s.streamCriticalAlerts)
}

func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
}

func flush(c *gin.Context) {
	if f, ok := c.Writer.(interface{ Flush() }); ok {
		f.Flush()
	}
}

func (s *Server) streamMetrics(serviceFilter string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sseHeaders(c)
		sub, ctx := s.Metrics.Subscribe(c.Request.Context(), DropOldest)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.Events():
				if !ok {
					return
				}
				var m eventbus.MetricEvent
				if err := json.Unmarshal(payload, &m); err != nil {
					continue
				}
				if serviceFilter != "" && m.ServiceName != serviceFilter {
					continue
				}
				c.Render(-1, sse.Event{Id: m.EventID, Event: "metric", Data: m})
				flush(c)
			}
		}
	}
}

func (s *Server) streamLatestMetrics(c *gin.Context) {
	sseHeaders(c)
	serviceFilter := c.Query("serviceName")
	sub, ctx := s.LatestMetrics.Subscribe(c.Request.Context(), KeepLatest)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Events():
			if !ok {
				return
			}
			var m eventbus.MetricEvent
			if err := json.Unmarshal(payload, &m); err != nil {
				continue
			}
			if serviceFilter != "" && m.ServiceName != serviceFilter {
				continue
			}
			c.Render(-1, sse.Event{Id: m.EventID, Event: "latest-metric", Data: m})
			flush(c)
		}
	}
}

// streamCombinedMetrics serves the interleaved raw+latest metrics stream
// (SPEC_FULL.md §14), deduplicated by (service, metricType).
func (s *Server) streamCombinedMetrics(c *gin.Context) {
	sseHeaders(c)
	ctx := c.Request.Context()
	sub := CombinedMetrics(ctx, s.Metrics, s.LatestMetrics, s.Metrics.BufferSize())
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Events():
			if !ok {
				return
			}
			var m eventbus.MetricEvent
			if err := json.Unmarshal(payload, &m); err != nil {
				continue
			}
			c.Render(-1, sse.Event{Id: m.EventID, Event: "metric", Data: m})
			flush(c)
		}
	}
}

func (s *Server) streamHeartbeat(c *gin.Context) {
	sseHeaders(c)
	interval := time.Duration(s.HeartbeatIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.SSEvent("heartbeat", map[string]any{"ts": now.Unix()})
			flush(c)
		}
	}
}

func (s *Server) streamAlerts(serviceFilter string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sseHeaders(c)
		sub, ctx := s.Alerts.Subscribe(c.Request.Context(), DropOldest)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.Events():
				if !ok {
					return
				}
				var a eventbus.AlertEvent
				if err := json.Unmarshal(payload, &a); err != nil {
					continue
				}
				if serviceFilter != "" && a.ServiceName != serviceFilter {
					continue
				}
				c.Render(-1, sse.Event{Id: a.AlertID, Event: alertEventName(a), Data: a})
				flush(c)
			}
		}
	}
}

func (s *Server) streamActiveAlerts(c *gin.Context) {
	sseHeaders(c)
	serviceFilter := c.Query("serviceName")
	sub, ctx := s.Alerts.Subscribe(c.Request.Context(), DropOldest)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Events():
			if !ok {
				return
			}
			var a eventbus.AlertEvent
			if err := json.Unmarshal(payload, &a); err != nil {
				continue
			}
			if a.Status != eventbus.StatusActive {
				continue
			}
			if serviceFilter != "" && a.ServiceName != serviceFilter {
				continue
			}
			c.Render(-1, sse.Event{Id: a.AlertID, Event: "alert-active", Data: a})
			flush(c)
		}
	}
}

func (s *Server) streamCriticalAlerts(c *gin.Context) {
	sseHeaders(c)
	sub, ctx := s.Alerts.Subscribe(c.Request.Context(), DropOldest)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Events():
			if !ok {
				return
			}
			var a eventbus.AlertEvent
			if err := json.Unmarshal(payload, &a); err != nil {
				continue
			}
			if a.Severity != eventbus.SeverityCritical {
				continue
			}
			c.Render(-1, sse.Event{Id: a.AlertID, Event: "alert-critical", Data: a})
			flush(c)
		}
	}
}

func alertEventName(a eventbus.AlertEvent) string {
	switch a.Status {
	case eventbus.StatusResolved, eventbus.StatusAutoResolved:
		return "alert-resolved"
	case eventbus.StatusAcknowledged:
		return "alert-acknowledged"
	case eventbus.StatusActive:
		return "alert-triggered"
	default:
		return "alert-update"
	}
}

// Health responds to a basic liveness probe, mirroring the ingestion
// service's /api/metrics/health endpoint for operational parity.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
