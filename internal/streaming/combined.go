package streaming

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"

	"github.com/qiniu/monitorflow/internal/eventbus"
)

// dedupWindow is a small LRU of recently-seen (service, metricType) keys,
// used by the combined metrics stream to avoid emitting the same pair twice
// within one interleave window (SPEC_FULL.md §14).
type dedupWindow struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	seen     map[string]*list.Element
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{capacity: capacity, order: list.New(), seen: map[string]*list.Element{}}
}

// seenRecently reports whether key was seen within the window and records it.
func (d *dedupWindow) seenRecently(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		d.order.MoveToFront(el)
		return true
	}
	el := d.order.PushFront(key)
	d.seen[key] = el
	if d.order.Len() > d.capacity {
		oldest := d.order.Back()
		if oldest != nil {
			d.order.Remove(oldest)
			delete(d.seen, oldest.Value.(string))
		}
	}
	return false
}

// CombinedMetrics merges the raw-metric hub with the Latest-Metric Reader's
// hub into one bufferSize*2 stream, deduplicating by (service, metricType)
// across the interleave (SPEC_FULL.md §14).
func CombinedMetrics(ctx context.Context, raw, latest *Hub, bufferSize int) *Subscription {
	combined := NewHub(bufferSize * 2)
	sub, subCtx := combined.Subscribe(ctx, DropOldest)

	dedup := newDedupWindow(bufferSize * 4)

	forward := func(source *Hub, policy OverflowPolicy) {
		upstream, upstreamCtx := source.Subscribe(subCtx, policy)
		defer upstream.Close()
		for {
			select {
			case <-upstreamCtx.Done():
				return
			case payload, ok := <-upstream.Events():
				if !ok {
					return
				}
				var m eventbus.MetricEvent
				if err := json.Unmarshal(payload, &m); err != nil {
					continue
				}
				if dedup.seenRecently(m.CacheKeySuffix()) {
					continue
				}
				combined.broadcast(payload)
			}
		}
	}

	go forward(raw, DropOldest)
	go forward(latest, KeepLatest)

	return sub
}
