package eventbus

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{2,100}$`)

// ValidationErrors collects one message per failed field, matching the
// ingestion boundary's {success:false, errors:[...]} response shape.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(v, "; "))
}

// NormalizeServiceName lowercases and trims a service name the way the
// ingestion publisher is required to before a MetricEvent enters the core.
func NormalizeServiceName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateMetricEvent checks m against the invariants in SPEC_FULL.md §4/§18.
// maxValue and allowedEnvironments come from ingestion configuration.
func ValidateMetricEvent(m *MetricEvent, maxValue float64, allowedEnvironments map[Environment]bool) ValidationErrors {
	var errs ValidationErrors

	m.ServiceName = NormalizeServiceName(m.ServiceName)
	if !serviceNamePattern.MatchString(m.ServiceName) {
		errs = append(errs, "serviceName must match ^[A-Za-z0-9._-]{2,100}$")
	}

	if !m.MetricType.Valid() {
		errs = append(errs, fmt.Sprintf("metricType %q is not a recognized metric type", m.MetricType))
	}

	if math.IsNaN(m.MetricValue) || math.IsInf(m.MetricValue, 0) {
		errs = append(errs, "metricValue must be finite")
	} else {
		if m.MetricValue < 0 {
			errs = append(errs, "metricValue must be non-negative")
		}
		if maxValue > 0 && m.MetricValue > maxValue {
			errs = append(errs, fmt.Sprintf("metricValue exceeds configured ceiling %.2f", maxValue))
		}
		if m.MetricType.isPercentageFamily() && m.MetricValue > 100 {
			errs = append(errs, "metricValue for a percentage/rate metric must be <= 100")
		}
	}

	now := time.Now()
	if m.Timestamp.IsZero() {
		m.Timestamp = NewWireTime(now)
	} else {
		if m.Timestamp.Before(now.Add(-24 * time.Hour)) {
			errs = append(errs, "timestamp is more than 24h in the past")
		}
		if m.Timestamp.After(now.Add(1 * time.Hour)) {
			errs = append(errs, "timestamp is more than 1h in the future")
		}
	}

	if m.Environment != "" {
		if len(allowedEnvironments) > 0 && !allowedEnvironments[m.Environment] {
			errs = append(errs, fmt.Sprintf("environment %q is not in the configured allowlist", m.Environment))
		}
	} else {
		m.Environment = EnvUnknown
	}

	if m.Unit == "" {
		m.Unit = m.MetricType.DefaultUnit()
	}

	return errs
}
