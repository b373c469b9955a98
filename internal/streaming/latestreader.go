package streaming

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/cache"
	"github.com/qiniu/monitorflow/internal/eventbus"
)

// LatestMetricReader periodically scans the cache keyspace for latest-value
// entries and emits them onto the latest-metric SSE stream (SPEC_FULL.md
// §15). A cache-unavailable tick degrades to a no-op tick.
type LatestMetricReader struct {
	Cache    cache.Client
	Hub      *Hub
	Interval time.Duration
	Service  string // optional: narrow the scan to one service
}

func (r *LatestMetricReader) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *LatestMetricReader) tick(ctx context.Context) {
	keys := r.Cache.Scan(ctx, cache.MetricKeyPrefix(r.Service))
	for _, key := range keys {
		raw, found := r.Cache.Get(ctx, key)
		if !found {
			continue
		}
		var m eventbus.MetricEvent
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("latest-metric reader: dropping undecodable cache entry")
			continue
		}
		r.Hub.BroadcastJSON(m)
	}
}
