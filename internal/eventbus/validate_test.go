package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateMetricEventAccepts(t *testing.T) {
	m := &MetricEvent{
		EventID:     "e1",
		ServiceName: "  Web-Service  ",
		MetricType:  MetricCPU,
		MetricValue: 55,
		Timestamp:   NewWireTime(time.Now()),
	}
	errs := ValidateMetricEvent(m, 1000, nil)
	assert.Empty(t, errs)
	assert.Equal(t, "web-service", m.ServiceName)
	assert.Equal(t, "percent", m.Unit)
}

func TestValidateMetricEventDefaultsMissingTimestampToNow(t *testing.T) {
	m := &MetricEvent{ServiceName: "web", MetricType: MetricCPU, MetricValue: 1}
	errs := ValidateMetricEvent(m, 1000, nil)
	assert.Empty(t, errs)
	assert.WithinDuration(t, time.Now(), m.Timestamp.Time, time.Second)
}

func TestValidateMetricEventDoesNotRequireEventID(t *testing.T) {
	m := &MetricEvent{ServiceName: "web", MetricType: MetricCPU, MetricValue: 1, Timestamp: NewWireTime(time.Now())}
	errs := ValidateMetricEvent(m, 1000, nil)
	assert.Empty(t, errs)
	assert.Empty(t, m.EventID)
}

func TestValidateMetricEventRejectsBadServiceName(t *testing.T) {
	m := &MetricEvent{EventID: "e1", ServiceName: "x", MetricType: MetricCPU, MetricValue: 1, Timestamp: NewWireTime(time.Now())}
	errs := ValidateMetricEvent(m, 1000, nil)
	assert.NotEmpty(t, errs)
}

func TestValidateMetricEventEnforcesPercentageCeiling(t *testing.T) {
	m := &MetricEvent{EventID: "e1", ServiceName: "web", MetricType: MetricErrorRate, MetricValue: 150, Timestamp: NewWireTime(time.Now())}
	errs := ValidateMetricEvent(m, 1000, nil)
	assert.Contains(t, errs.Error(), "percentage/rate")
}

func TestValidateMetricEventRejectsStaleTimestamp(t *testing.T) {
	m := &MetricEvent{EventID: "e1", ServiceName: "web", MetricType: MetricCPU, MetricValue: 1, Timestamp: NewWireTime(time.Now().Add(-48 * time.Hour))}
	errs := ValidateMetricEvent(m, 1000, nil)
	assert.NotEmpty(t, errs)
}

func TestValidateMetricEventEnforcesEnvironmentAllowlist(t *testing.T) {
	allowed := map[Environment]bool{EnvProduction: true}
	m := &MetricEvent{EventID: "e1", ServiceName: "web", MetricType: MetricCPU, MetricValue: 1, Timestamp: NewWireTime(time.Now()), Environment: "staging"}
	errs := ValidateMetricEvent(m, 1000, allowed)
	assert.NotEmpty(t, errs)
}
