// Package aggregator implements the Aggregator: for every metric, cache the
// latest value and append it to history, concurrently, never failing the
// caller (SPEC_FULL.md §10).
package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/cache"
	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/store/metricstore"
)

// Result reports per-operation success. Neither field failing propagates an
// error to the caller.
type Result struct {
	Cached    bool
	Persisted bool
}

// Aggregator wires the cache and metric history store together.
type Aggregator struct {
	Cache      cache.Client
	Store      metricstore.Store
	TTL        time.Duration
}

// New builds an Aggregator with the given cache TTL for latest-value entries.
func New(c cache.Client, s metricstore.Store, ttl time.Duration) *Aggregator {
	return &Aggregator{Cache: c, Store: s, TTL: ttl}
}

// Process runs the cache write and history insert concurrently and reports
// which succeeded. Failures are logged here, not returned, so a failed
// aggregation never blocks the Alert Engine pipeline running alongside it.
func (a *Aggregator) Process(ctx context.Context, m eventbus.MetricEvent) Result {
	var res Result
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		res.Cached = a.cacheLatest(ctx, m)
	}()

	go func() {
		defer wg.Done()
		if err := a.Store.Insert(ctx, m); err != nil {
			log.Error().Err(err).Str("service", m.ServiceName).Str("metricType", string(m.MetricType)).Msg("aggregator: metric history insert failed")
			res.Persisted = false
			return
		}
		res.Persisted = true
	}()

	wg.Wait()
	return res
}

func (a *Aggregator) cacheLatest(ctx context.Context, m eventbus.MetricEvent) bool {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Msg("aggregator: failed to encode metric for cache")
		return false
	}
	key := cache.MetricKey(m.ServiceName, string(m.MetricType))
	return a.Cache.Set(ctx, key, payload, a.TTL)
}
