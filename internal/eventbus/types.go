// Package eventbus defines the wire types shared by every service: MetricEvent,
// AlertEvent, AlertRule, and the closed enums they're built from. Every service
// in the pipeline depends on this package and nothing else in the core.
package eventbus

import (
	"fmt"
	"strings"
	"time"
)

// MetricType is a closed set of measurement kinds. Each carries a default unit
// and display name used when the producer omits one.
type MetricType string

const (
	MetricCPU             MetricType = "CPU"
	MetricMemory          MetricType = "MEMORY"
	MetricLatency         MetricType = "LATENCY"
	MetricErrorRate       MetricType = "ERROR_RATE"
	MetricThroughput      MetricType = "THROUGHPUT"
	MetricDiskIO          MetricType = "DISK_IO"
	MetricNetworkBandwidth MetricType = "NETWORK_BANDWIDTH"
	MetricDBConnections   MetricType = "DB_CONNECTIONS"
	MetricQueueDepth      MetricType = "QUEUE_DEPTH"
	MetricCacheHitRate    MetricType = "CACHE_HIT_RATE"
	MetricHeapMemory      MetricType = "HEAP_MEMORY"
	MetricThreadCount     MetricType = "THREAD_COUNT"
	MetricGCTime          MetricType = "GC_TIME"
	MetricCustom          MetricType = "CUSTOM"
)

type metricTypeInfo struct {
	unit        string
	displayName string
}

var metricTypeInfos = map[MetricType]metricTypeInfo{
	MetricCPU:              {"percent", "CPU usage"},
	MetricMemory:           {"percent", "memory usage"},
	MetricLatency:          {"ms", "latency"},
	MetricErrorRate:        {"percent", "error rate"},
	MetricThroughput:       {"req/s", "throughput"},
	MetricDiskIO:           {"MB/s", "disk I/O"},
	MetricNetworkBandwidth: {"MB/s", "network bandwidth"},
	MetricDBConnections:    {"count", "DB connections"},
	MetricQueueDepth:       {"count", "queue depth"},
	MetricCacheHitRate:     {"percent", "cache hit rate"},
	MetricHeapMemory:       {"percent", "heap memory usage"},
	MetricThreadCount:      {"count", "thread count"},
	MetricGCTime:           {"ms", "GC pause time"},
	MetricCustom:           {"", "custom metric"},
}

// Valid reports whether m is one of the closed enum constants.
func (m MetricType) Valid() bool {
	_, ok := metricTypeInfos[m]
	return ok
}

// DefaultUnit returns the unit a producer should use when it omits one.
func (m MetricType) DefaultUnit() string {
	return metricTypeInfos[m].unit
}

// DisplayName returns the human label used in alert messages.
func (m MetricType) DisplayName() string {
	if info, ok := metricTypeInfos[m]; ok && info.displayName != "" {
		return info.displayName
	}
	return string(m)
}

// isPercentageFamily reports whether values of this type are bounded at 100
// (percentage metrics and rate metrics, per the ingestion ceiling rule).
func (m MetricType) isPercentageFamily() bool {
	unit := metricTypeInfos[m].unit
	return strings.Contains(unit, "percent") || strings.Contains(string(m), "RATE")
}

// ComparisonOperator is the set of threshold comparisons the Rule Evaluator
// understands.
type ComparisonOperator string

const (
	OpGT  ComparisonOperator = "GT"
	OpGTE ComparisonOperator = "GTE"
	OpLT  ComparisonOperator = "LT"
	OpLTE ComparisonOperator = "LTE"
	OpEQ  ComparisonOperator = "EQ"
)

// AlertSeverity is the closed severity scale for AlertRule/AlertEvent.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// AlertStatus is the closed set of lifecycle states an AlertEvent may hold.
type AlertStatus string

const (
	StatusActive       AlertStatus = "ACTIVE"
	StatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	StatusResolved     AlertStatus = "RESOLVED"
	StatusAutoResolved AlertStatus = "AUTO_RESOLVED"
	StatusSuppressed   AlertStatus = "SUPPRESSED"
	StatusPending      AlertStatus = "PENDING"
)

// Environment is the closed set of deployment environments a MetricEvent may
// be tagged with.
type Environment string

const (
	EnvDev        Environment = "dev"
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
	EnvUnknown    Environment = "unknown"
)

// MetricEvent is a single time-stamped measurement emitted by a monitored
// service. See SPEC_FULL.md §4 for the wire contract.
type MetricEvent struct {
	EventID     string            `json:"eventId"`
	ServiceName string            `json:"serviceName"`
	MetricType  MetricType        `json:"metricType"`
	MetricValue float64           `json:"metricValue"`
	Unit        string            `json:"unit,omitempty"`
	Timestamp   WireTime          `json:"timestamp"`
	Hostname    string            `json:"hostname,omitempty"`
	Environment Environment       `json:"environment,omitempty"`
	Version     string            `json:"version,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	CreatedAt   WireTime          `json:"createdAt,omitempty"`
}

// CacheKeySuffix returns the "<service>:<METRIC_TYPE>" pair the cache client
// keys latest-value entries on.
func (m MetricEvent) CacheKeySuffix() string {
	return m.ServiceName + ":" + string(m.MetricType)
}

// AlertRule is an operator-provisioned threshold condition.
type AlertRule struct {
	ID                 int64              `json:"id"`
	RuleName           string             `json:"ruleName"`
	ServiceName        string             `json:"serviceName"`
	MetricType         MetricType         `json:"metricType"`
	ThresholdValue     float64            `json:"thresholdValue"`
	ComparisonOperator ComparisonOperator `json:"comparisonOperator"`
	DurationMinutes    int                `json:"durationMinutes"`
	Severity           AlertSeverity      `json:"severity"`
	Enabled            bool               `json:"enabled"`
	Description        string             `json:"description,omitempty"`
}

// IsWildcard reports whether the rule applies to every service.
func (r AlertRule) IsWildcard() bool { return r.ServiceName == "*" }

// AlertType derives the cache/alert scoping label "<METRIC_TYPE>_<SEVERITY>".
func (r AlertRule) AlertType() string {
	return strings.ToUpper(string(r.MetricType) + "_" + string(r.Severity))
}

// AlertEvent is a record of a rule violation, ACTIVE until resolved.
type AlertEvent struct {
	AlertID         string            `json:"alertId"`
	ServiceName     string            `json:"serviceName"`
	AlertType       string            `json:"alertType"`
	Severity        AlertSeverity     `json:"severity"`
	Status          AlertStatus       `json:"status"`
	Message         string            `json:"message"`
	Description     string            `json:"description,omitempty"`
	ThresholdValue  float64           `json:"thresholdValue"`
	CurrentValue    float64           `json:"currentValue"`
	TriggeredAt     WireTime          `json:"triggeredAt"`
	ResolvedAt      *WireTime         `json:"resolvedAt,omitempty"`
	DurationSeconds int64             `json:"durationSeconds,omitempty"`
	Hostname        string            `json:"hostname,omitempty"`
	Environment     Environment       `json:"environment,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// IsActive reports whether the alert's current status is the ACTIVE state the
// per-(service,alertType) invariant tracks.
func (a AlertEvent) IsActive() bool { return a.Status == StatusActive }

// TriggerMessage formats the human-readable alert message the Alert Engine
// attaches on TRIGGER.
func TriggerMessage(mt MetricType, op ComparisonOperator, value, threshold float64) string {
	return fmt.Sprintf("%s %s threshold exceeded: current=%s, threshold=%s",
		mt.DisplayName(), operatorSymbol(op), trimFloat(value), trimFloat(threshold))
}

func operatorSymbol(op ComparisonOperator) string {
	switch op {
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	case OpEQ:
		return "=="
	default:
		return string(op)
	}
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// wireLayout is the timestamp layout every event on the wire uses: no
// timezone, interpreted as the producer's local clock (SPEC_FULL.md §4).
const wireLayout = "2006-01-02T15:04:05"

// WireTime marshals/unmarshals the codec's timezone-less timestamp form.
type WireTime struct {
	time.Time
}

// NewWireTime truncates t to second precision, matching the wire layout's
// resolution.
func NewWireTime(t time.Time) WireTime {
	return WireTime{t.Truncate(time.Second)}
}

func (t WireTime) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Time.Format(wireLayout) + `"`), nil
}

func (t *WireTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(wireLayout, s)
	if err != nil {
		return fmt.Errorf("parse wire timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
