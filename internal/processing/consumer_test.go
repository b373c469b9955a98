package processing

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiniu/monitorflow/internal/aggregator"
	"github.com/qiniu/monitorflow/internal/alertbus"
	"github.com/qiniu/monitorflow/internal/alertengine"
	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/logbus"
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
func (f *fakeCache) Scan(ctx context.Context, prefix string) []string             { return nil }
func (f *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) bool { return true }

type fakeMetricStore struct {
	mu   sync.Mutex
	rows []eventbus.MetricEvent
}

func (f *fakeMetricStore) Insert(ctx context.Context, m eventbus.MetricEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, m)
	return nil
}
func (f *fakeMetricStore) Close() {}

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

type fakeHistory struct{ mu sync.Mutex }

func (f *fakeHistory) Insert(ctx context.Context, a eventbus.AlertEvent) error { return nil }
func (f *fakeHistory) UpdateResolution(ctx context.Context, alertID string, resolvedAt eventbus.WireTime, durationSeconds int64) error {
	return nil
}
func (f *fakeHistory) FindByAlertID(ctx context.Context, alertID string) (*eventbus.AlertEvent, bool, error) {
	return nil, false, nil
}

type fakeProducer struct{}

func (fakeProducer) Publish(ctx context.Context, topic, key string, value []byte) error { return nil }
func (fakeProducer) Close() error                                                       { return nil }

type queueConsumer struct {
	records []logbus.Record
	idx     int
	acked   []int64
}

func (q *queueConsumer) Fetch(ctx context.Context) (logbus.Record, error) {
	if q.idx >= len(q.records) {
		<-ctx.Done()
		return logbus.Record{}, ctx.Err()
	}
	r := q.records[q.idx]
	q.idx++
	return r, nil
}
func (q *queueConsumer) Ack(ctx context.Context, r logbus.Record) error {
	q.acked = append(q.acked, r.Offset)
	return nil
}
func (q *queueConsumer) Close() error { return nil }

func TestConsumerRunProcessesAndAcksOneRecord(t *testing.T) {
	m := eventbus.MetricEvent{EventID: "e1", ServiceName: "web", MetricType: eventbus.MetricCPU, MetricValue: 10, Timestamp: eventbus.NewWireTime(time.Now())}
	payload, err := json.Marshal(m)
	require.NoError(t, err)

	src := &queueConsumer{records: []logbus.Record{{Offset: 1, Value: payload}}}

	metricStore := &fakeMetricStore{}
	agg := aggregator.New(newFakeCache(), metricStore, time.Minute)
	engine := alertengine.New(&fakeRules{}, newFakeCache(), &fakeHistory{}, alertbus.NewPublisher(fakeProducer{}, "alerts"))
	c := New(src, agg, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.Contains(t, src.acked, int64(1))
	assert.Len(t, metricStore.rows, 1)
}

func TestConsumerDoesNotAckOnDecodeFailure(t *testing.T) {
	src := &queueConsumer{records: []logbus.Record{{Offset: 7, Value: []byte("not json")}}}

	agg := aggregator.New(newFakeCache(), &fakeMetricStore{}, time.Minute)
	engine := alertengine.New(&fakeRules{}, newFakeCache(), &fakeHistory{}, alertbus.NewPublisher(fakeProducer{}, "alerts"))
	c := New(src, agg, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.NotContains(t, src.acked, int64(7))
}
