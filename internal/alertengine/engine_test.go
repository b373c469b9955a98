package alertengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiniu/monitorflow/internal/alertbus"
	"github.com/qiniu/monitorflow/internal/eventbus"
)

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return true
}
func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}
func (f *fakeCache) Delete(ctx context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return true
}
func (f *fakeCache) Scan(ctx context.Context, prefix string) []string { return nil }
func (f *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) bool { return true }

type fakeRules struct{ rules []eventbus.AlertRule }

func (f *fakeRules) FindApplicable(ctx context.Context, service string, mt eventbus.MetricType) ([]eventbus.AlertRule, error) {
	var out []eventbus.AlertRule
	for _, r := range f.rules {
		if r.MetricType == mt && (r.ServiceName == service || r.ServiceName == "*") {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeRules) Create(ctx context.Context, r eventbus.AlertRule) error { return nil }
func (f *fakeRules) EnsureSeeded(ctx context.Context) error                { return nil }

type fakeHistory struct {
	mu             sync.Mutex
	rows           map[string]eventbus.AlertEvent
	failResolution bool
}

type assertError struct{}

func (assertError) Error() string { return "history update failed" }

func newFakeHistory() *fakeHistory { return &fakeHistory{rows: map[string]eventbus.AlertEvent{}} }

func (f *fakeHistory) Insert(ctx context.Context, a eventbus.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[a.AlertID] = a
	return nil
}
func (f *fakeHistory) UpdateResolution(ctx context.Context, alertID string, resolvedAt eventbus.WireTime, durationSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failResolution {
		return assertError{}
	}
	row := f.rows[alertID]
	row.Status = eventbus.StatusResolved
	row.ResolvedAt = &resolvedAt
	row.DurationSeconds = durationSeconds
	f.rows[alertID] = row
	return nil
}
func (f *fakeHistory) FindByAlertID(ctx context.Context, alertID string) (*eventbus.AlertEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[alertID]
	if !ok {
		return nil, false, nil
	}
	return &row, true, nil
}

type fakeProducer struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, value)
	return nil
}
func (p *fakeProducer) Close() error { return nil }

func newEngine(rules []eventbus.AlertRule) (*Engine, *fakeCache, *fakeHistory, *fakeProducer) {
	c := newFakeCache()
	h := newFakeHistory()
	p := &fakeProducer{}
	pub := alertbus.NewPublisher(p, "alerts")
	e := New(&fakeRules{rules: rules}, c, h, pub)
	return e, c, h, p
}

func cpuRule(threshold float64, sev eventbus.AlertSeverity, service string, durationMinutes int) eventbus.AlertRule {
	return eventbus.AlertRule{
		RuleName: "r-" + service, ServiceName: service, MetricType: eventbus.MetricCPU,
		ThresholdValue: threshold, ComparisonOperator: eventbus.OpGT, Severity: sev,
		Enabled: true, DurationMinutes: durationMinutes,
	}
}

func metricAt(service string, value float64) eventbus.MetricEvent {
	return eventbus.MetricEvent{
		EventID: "e", ServiceName: service, MetricType: eventbus.MetricCPU,
		MetricValue: value, Timestamp: eventbus.NewWireTime(time.Now()),
	}
}

func TestTriggerThenResolveNoSustainWindow(t *testing.T) {
	e, c, h, p := newEngine([]eventbus.AlertRule{cpuRule(80, eventbus.SeverityHigh, "*", 0)})
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, metricAt("web", 92)))
	_, found := c.Get(ctx, "monitoring:alert:state:web:CPU_HIGH")
	assert.True(t, found)
	require.Len(t, p.messages, 1)

	require.NoError(t, e.Evaluate(ctx, metricAt("web", 10)))
	_, found = c.Get(ctx, "monitoring:alert:state:web:CPU_HIGH")
	assert.False(t, found)
	require.Len(t, p.messages, 2)

	require.Len(t, h.rows, 1)
	for _, row := range h.rows {
		assert.Equal(t, eventbus.StatusResolved, row.Status)
	}
}

func TestNoRetriggerWhileActive(t *testing.T) {
	e, _, _, p := newEngine([]eventbus.AlertRule{cpuRule(80, eventbus.SeverityHigh, "*", 0)})
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, metricAt("web", 92)))
	require.NoError(t, e.Evaluate(ctx, metricAt("web", 95)))

	assert.Len(t, p.messages, 1)
}

func TestWildcardAndSpecificBothMatch(t *testing.T) {
	e, _, _, p := newEngine([]eventbus.AlertRule{
		{RuleName: "wild", ServiceName: "*", MetricType: eventbus.MetricMemory, ThresholdValue: 85, ComparisonOperator: eventbus.OpGT, Severity: eventbus.SeverityHigh, Enabled: true},
		{RuleName: "db", ServiceName: "db", MetricType: eventbus.MetricMemory, ThresholdValue: 90, ComparisonOperator: eventbus.OpGT, Severity: eventbus.SeverityCritical, Enabled: true},
	})
	ctx := context.Background()

	m := eventbus.MetricEvent{EventID: "e", ServiceName: "db", MetricType: eventbus.MetricMemory, MetricValue: 92, Timestamp: eventbus.NewWireTime(time.Now())}
	require.NoError(t, e.Evaluate(ctx, m))

	assert.Len(t, p.messages, 2)
}

func TestRedeliveryOfTriggerIsIdempotent(t *testing.T) {
	e, _, h, p := newEngine([]eventbus.AlertRule{cpuRule(80, eventbus.SeverityHigh, "*", 0)})
	ctx := context.Background()
	m := metricAt("web", 92)

	require.NoError(t, e.Evaluate(ctx, m))
	require.NoError(t, e.Evaluate(ctx, m))

	assert.Len(t, p.messages, 1)
	assert.Len(t, h.rows, 1)
}

func TestResolvePublishesDespiteHistoryUpdateFailure(t *testing.T) {
	e, c, h, p := newEngine([]eventbus.AlertRule{cpuRule(80, eventbus.SeverityHigh, "*", 0)})
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, metricAt("web", 92)))
	require.Len(t, p.messages, 1)

	h.failResolution = true
	require.NoError(t, e.Evaluate(ctx, metricAt("web", 10)))

	_, found := c.Get(ctx, "monitoring:alert:state:web:CPU_HIGH")
	assert.False(t, found, "cache state must still be cleared")
	assert.Len(t, p.messages, 2, "resolve must still publish despite the history write failing")
}

func TestDurationThresholdDelaysTrigger(t *testing.T) {
	e, c, _, p := newEngine([]eventbus.AlertRule{cpuRule(80, eventbus.SeverityHigh, "*", 5)})
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, metricAt("web", 92)))
	assert.Empty(t, p.messages, "first violating sample should only start the sustain window")
	_, found := c.Get(ctx, "monitoring:alert:pending:web:CPU_HIGH")
	assert.True(t, found)
}

func TestDurationThresholdClearsPendingOnNonViolation(t *testing.T) {
	e, c, _, p := newEngine([]eventbus.AlertRule{cpuRule(80, eventbus.SeverityHigh, "*", 5)})
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, metricAt("web", 92)))
	require.NoError(t, e.Evaluate(ctx, metricAt("web", 10)))

	_, found := c.Get(ctx, "monitoring:alert:pending:web:CPU_HIGH")
	assert.False(t, found)
	assert.Empty(t, p.messages)
}
