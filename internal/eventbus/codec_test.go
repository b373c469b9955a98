package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricEventRoundTrip(t *testing.T) {
	ts := NewWireTime(time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC))
	m := MetricEvent{
		EventID:     "evt-1",
		ServiceName: "web",
		MetricType:  MetricCPU,
		MetricValue: 92.5,
		Unit:        "percent",
		Timestamp:   ts,
		Hostname:    "web-01",
		Environment: EnvProduction,
		Version:     "1.2.3",
		Tags:        map[string]string{"region": "us-east"},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded MetricEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, m, decoded)
}

func TestMetricEventTagsOmittedWhenAbsent(t *testing.T) {
	m := MetricEvent{EventID: "evt-2", ServiceName: "db", MetricType: MetricMemory, Timestamp: NewWireTime(time.Now())}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"tags"`)
}

func TestAlertEventRoundTrip(t *testing.T) {
	triggered := NewWireTime(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	resolved := NewWireTime(triggered.Add(90 * time.Second))
	a := AlertEvent{
		AlertID:         "alert-1",
		ServiceName:     "web",
		AlertType:       "CPU_HIGH",
		Severity:        SeverityHigh,
		Status:          StatusResolved,
		Message:         "CPU usage > threshold exceeded: current=92, threshold=80",
		ThresholdValue:  80,
		CurrentValue:    92,
		TriggeredAt:     triggered,
		ResolvedAt:      &resolved,
		DurationSeconds: 90,
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var decoded AlertEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, a, decoded)
}

func TestWireTimeUnmarshalIgnoresTimezone(t *testing.T) {
	var wt WireTime
	require.NoError(t, json.Unmarshal([]byte(`"2025-01-02T03:04:05"`), &wt))
	assert.Equal(t, 2025, wt.Year())
	assert.Equal(t, 3, wt.Hour())
}

func TestUnknownFieldsIgnoredOnDecode(t *testing.T) {
	raw := []byte(`{"eventId":"e1","serviceName":"web","metricType":"CPU","metricValue":10,"timestamp":"2025-01-01T00:00:00","unexpectedField":"ignored"}`)
	var m MetricEvent
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "web", m.ServiceName)
}

func TestAlertTypeDerivation(t *testing.T) {
	r := AlertRule{MetricType: MetricCPU, Severity: SeverityHigh}
	assert.Equal(t, "CPU_HIGH", r.AlertType())
}
