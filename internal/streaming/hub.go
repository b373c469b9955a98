// Package streaming implements the Stream Hub: one shared, late-join
// upstream per topic multicast to many SSE subscribers with per-subscriber
// backpressure policy (SPEC_FULL.md §14).
package streaming

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/logbus"
)

// OverflowPolicy governs what happens when a subscriber's buffer is full.
type OverflowPolicy int

const (
	// DropOldest discards the buffer's oldest undelivered item to make room,
	// used for the raw metric/alert streams.
	DropOldest OverflowPolicy = iota
	// KeepLatest empties the buffer before each push so only the newest item
	// is held, used for the periodic latest-value stream.
	KeepLatest
)

// Subscription is one live SSE connection's inbox.
type Subscription struct {
	ch     chan []byte
	policy OverflowPolicy
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Events returns the channel subscribers should range over.
func (s *Subscription) Events() <-chan []byte { return s.ch }

// Close releases the subscription; safe to call multiple times.
func (s *Subscription) Close() { s.cancel() }

func (s *Subscription) push(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy == KeepLatest {
		// Drain fully before every push: a keep-latest subscriber must never
		// hold more than one snapshot, regardless of buffer depth.
		for {
			select {
			case <-s.ch:
				continue
			default:
			}
			break
		}
		select {
		case s.ch <- payload:
		default:
		}
		return
	}
	select {
	case s.ch <- payload:
		return
	default:
	}
	// DropOldest
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- payload:
	default:
	}
}

// Hub is one shared upstream subscription fanned out to N subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
}

// NewHub creates a hub with the given default per-subscriber buffer depth.
func NewHub(bufferSize int) *Hub {
	return &Hub{subscribers: map[*Subscription]struct{}{}, bufferSize: bufferSize}
}

// BufferSize returns the hub's configured per-subscriber buffer depth.
func (h *Hub) BufferSize() int { return h.bufferSize }

// Subscribe registers a new bounded subscriber.
func (h *Hub) Subscribe(ctx context.Context, policy OverflowPolicy) (*Subscription, context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{ch: make(chan []byte, h.bufferSize), policy: policy, cancel: cancel}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-subCtx.Done()
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
	}()

	return sub, subCtx
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		sub.push(payload)
	}
}

// RunSource pulls records from source and broadcasts every successfully
// decoded one; a decode failure is dropped and logged, never propagated
// (SPEC_FULL.md §14). Transient fetch errors are retried indefinitely
// without tearing down the shared stream.
func (h *Hub) RunSource(ctx context.Context, source logbus.Consumer, decode func([]byte) (any, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		rec, err := source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("stream hub: transient fetch error, retrying")
			continue
		}
		if decode != nil {
			if _, err := decode(rec.Value); err != nil {
				log.Warn().Err(err).Msg("stream hub: dropping record that failed to decode")
				continue
			}
		}
		h.broadcast(rec.Value)
	}
}

// BroadcastJSON is used by non-log-backed sources (the Latest-Metric Reader)
// to push an already-decoded value onto every subscriber.
func (h *Hub) BroadcastJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("stream hub: failed to encode value for broadcast")
		return
	}
	h.broadcast(payload)
}
