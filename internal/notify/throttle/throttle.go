// Package throttle implements the notification Throttler: a sliding
// duplicate window plus an hourly rate limit, process-local and not
// distributed (SPEC_FULL.md §16).
package throttle

import (
	"sync"
	"time"

	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/selfmetrics"
)

// Config carries the throttling parameters from NotificationsConfig.
type Config struct {
	Enabled                     bool
	DuplicateSuppressionMinutes int
	MaxNotificationsPerHour     int
}

// Throttler holds the two maps the original NotificationThrottler keeps as
// ConcurrentHashMaps; a single mutex serializes the one mutation point
// (record-and-increment) they share.
type Throttler struct {
	cfg Config

	mu             sync.Mutex
	lastAccepted   map[string]time.Time // "service:alertType" -> last accepted timestamp
	hourlyCounters map[string]int       // "service:hourBucket" -> count
}

func New(cfg Config) *Throttler {
	return &Throttler{
		cfg:            cfg,
		lastAccepted:   map[string]time.Time{},
		hourlyCounters: map[string]int{},
	}
}

// Should reports whether alert should be dispatched (true) or suppressed
// (false). On acceptance it records the timestamp and increments the hour
// counter, then sweeps stale entries, matching the order of checks in
// SPEC_FULL.md §16.
func (t *Throttler) Should(alert eventbus.AlertEvent) bool {
	if !t.cfg.Enabled {
		return true
	}

	now := time.Now()
	key := duplicateKey(alert)
	hourKey := hourBucketKey(alert.ServiceName, now)

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastAccepted[key]; ok {
		cutoff := now.Add(-time.Duration(t.cfg.DuplicateSuppressionMinutes) * time.Minute)
		if last.After(cutoff) {
			selfmetrics.ThrottleSuppressions.Inc()
			return false
		}
	}

	if t.hourlyCounters[hourKey] >= t.cfg.MaxNotificationsPerHour {
		selfmetrics.ThrottleSuppressions.Inc()
		return false
	}

	t.lastAccepted[key] = now
	t.hourlyCounters[hourKey]++
	t.cleanup(now)
	return true
}

// cleanup removes duplicate entries older than 2h and hour-counter buckets
// that aren't the current hour. Called on every accepted notification,
// matching recordNotification's inline cleanupOldRecords() call.
func (t *Throttler) cleanup(now time.Time) {
	cutoff := now.Add(-2 * time.Hour)
	for k, ts := range t.lastAccepted {
		if ts.Before(cutoff) {
			delete(t.lastAccepted, k)
		}
	}
	currentHour := hourBucket(now)
	for k := range t.hourlyCounters {
		if !hasHourSuffix(k, currentHour) {
			delete(t.hourlyCounters, k)
		}
	}
}

func duplicateKey(alert eventbus.AlertEvent) string {
	return alert.ServiceName + ":" + alert.AlertType
}

func hourBucket(t time.Time) string {
	return t.Truncate(time.Hour).Format("2006-01-02T15")
}

func hourBucketKey(service string, t time.Time) string {
	return service + ":" + hourBucket(t)
}

func hasHourSuffix(key, hour string) bool {
	if len(key) < len(hour) {
		return false
	}
	return key[len(key)-len(hour):] == hour
}
