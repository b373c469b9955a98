// Package alertengine implements the Alert Engine: rule lookup, the
// per-(service, alertType) state machine, cache-then-persist-then-publish
// ordering, and the duration-threshold sustain window (SPEC_FULL.md §11).
package alertengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/alertbus"
	"github.com/qiniu/monitorflow/internal/cache"
	"github.com/qiniu/monitorflow/internal/evaluator"
	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/selfmetrics"
	"github.com/qiniu/monitorflow/internal/store/alertstore"
	"github.com/qiniu/monitorflow/internal/store/rulestore"
)

// activeTTL is the cache TTL for an ACTIVE alert-state entry.
const activeTTL = 24 * time.Hour

// Engine wires the Rule Store, Cache, Alert History Store, and Alert
// Publisher together into the trigger/resolve state machine.
type Engine struct {
	Rules     rulestore.Store
	Cache     cache.Client
	History   alertstore.Store
	Publisher *alertbus.Publisher
}

func New(rules rulestore.Store, c cache.Client, history alertstore.Store, publisher *alertbus.Publisher) *Engine {
	return &Engine{Rules: rules, Cache: c, History: history, Publisher: publisher}
}

// pendingMarker is the auxiliary cache payload tracking a sustained
// violation's first-observed timestamp.
type pendingMarker struct {
	FirstViolationAt time.Time `json:"firstViolationAt"`
}

// Evaluate runs every applicable rule against m sequentially, preserving
// cache read/write causality per (service, alertType) (SPEC_FULL.md §11).
func (e *Engine) Evaluate(ctx context.Context, m eventbus.MetricEvent) error {
	rules, err := e.Rules.FindApplicable(ctx, m.ServiceName, m.MetricType)
	if err != nil {
		return fmt.Errorf("find applicable rules: %w", err)
	}

	for _, rule := range rules {
		if err := e.evaluateRule(ctx, m, rule); err != nil {
			return fmt.Errorf("evaluate rule %s: %w", rule.RuleName, err)
		}
	}
	return nil
}

func (e *Engine) evaluateRule(ctx context.Context, m eventbus.MetricEvent, rule eventbus.AlertRule) error {
	log.Debug().Str("rule", rule.RuleName).Bool("wildcard", rule.IsWildcard()).Msg("alertengine: evaluating rule")
	alertType := rule.AlertType()
	stateKey := cache.AlertStateKey(m.ServiceName, alertType)
	pendingKey := cache.AlertPendingKey(m.ServiceName, alertType)

	prior, priorFound := e.loadState(ctx, stateKey)
	fired := evaluator.Evaluate(m.MetricValue, rule.ThresholdValue, rule.ComparisonOperator)
	priorActive := priorFound && prior.IsActive()

	switch {
	case fired && !priorActive:
		sustained := e.sustainedFor(ctx, pendingKey, rule.DurationMinutes)
		if !sustained {
			return nil
		}
		e.Cache.Delete(ctx, pendingKey)
		return e.trigger(ctx, m, rule, alertType, stateKey)
	case !fired && priorActive:
		e.Cache.Delete(ctx, pendingKey)
		return e.resolve(ctx, m, prior, stateKey)
	case !fired:
		// Condition didn't sustain: clear any in-progress pending marker.
		e.Cache.Delete(ctx, pendingKey)
		return nil
	default:
		// fired && priorActive: already ACTIVE, no-op (redelivery-safe).
		return nil
	}
}

// sustainedFor implements the required duration-threshold resolution from
// SPEC_FULL.md §11. DurationMinutes<=0 fires immediately with no window.
func (e *Engine) sustainedFor(ctx context.Context, pendingKey string, durationMinutes int) bool {
	if durationMinutes <= 0 {
		return true
	}
	now := time.Now()
	raw, found := e.Cache.Get(ctx, pendingKey)
	if !found {
		marker, _ := json.Marshal(pendingMarker{FirstViolationAt: now})
		e.Cache.Set(ctx, pendingKey, marker, time.Duration(durationMinutes)*2*time.Minute)
		return false
	}
	var marker pendingMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		log.Warn().Err(err).Str("key", pendingKey).Msg("alertengine: corrupt pending marker, restarting sustain window")
		fresh, _ := json.Marshal(pendingMarker{FirstViolationAt: now})
		e.Cache.Set(ctx, pendingKey, fresh, time.Duration(durationMinutes)*2*time.Minute)
		return false
	}
	return now.Sub(marker.FirstViolationAt) >= time.Duration(durationMinutes)*time.Minute
}

func (e *Engine) loadState(ctx context.Context, key string) (eventbus.AlertEvent, bool) {
	raw, found := e.Cache.Get(ctx, key)
	if !found {
		return eventbus.AlertEvent{}, false
	}
	var a eventbus.AlertEvent
	if err := json.Unmarshal(raw, &a); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("alertengine: corrupt alert-state cache entry, treating as absent")
		return eventbus.AlertEvent{}, false
	}
	return a, true
}

// trigger builds a new AlertEvent, writes it to the cache before publishing
// so redelivery of m cannot re-trigger, per SPEC_FULL.md §11.
func (e *Engine) trigger(ctx context.Context, m eventbus.MetricEvent, rule eventbus.AlertRule, alertType, stateKey string) error {
	now := eventbus.NewWireTime(time.Now())
	alert := eventbus.AlertEvent{
		AlertID:        uuid.New().String(),
		ServiceName:    m.ServiceName,
		AlertType:      alertType,
		Severity:       rule.Severity,
		Status:         eventbus.StatusActive,
		Message:        eventbus.TriggerMessage(m.MetricType, rule.ComparisonOperator, m.MetricValue, rule.ThresholdValue),
		ThresholdValue: rule.ThresholdValue,
		CurrentValue:   m.MetricValue,
		TriggeredAt:    now,
		Hostname:       m.Hostname,
		Environment:    m.Environment,
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}
	e.Cache.Set(ctx, stateKey, payload, activeTTL)

	if err := e.History.Insert(ctx, alert); err != nil {
		// Store write on TRIGGER degrades silently: cache is source of truth.
		log.Error().Err(err).Str("alertId", alert.AlertID).Msg("alertengine: alert history insert failed on trigger")
	}

	if err := e.Publisher.Publish(ctx, alert); err != nil {
		return fmt.Errorf("publish trigger for %s: %w", alert.AlertID, err)
	}
	selfmetrics.AlertsTriggered.WithLabelValues(string(alert.Severity)).Inc()
	return nil
}

// resolve mutates prior in place, deletes the cache entry before persisting
// or publishing (cache deletion must succeed for redelivery correctness; on
// failure the caller must not acknowledge the metric).
func (e *Engine) resolve(ctx context.Context, m eventbus.MetricEvent, prior eventbus.AlertEvent, stateKey string) error {
	resolvedAt := eventbus.NewWireTime(time.Now())
	prior.Status = eventbus.StatusResolved
	prior.ResolvedAt = &resolvedAt
	prior.CurrentValue = m.MetricValue
	prior.DurationSeconds = int64(resolvedAt.Sub(prior.TriggeredAt.Time).Seconds())

	if !e.Cache.Delete(ctx, stateKey) {
		return fmt.Errorf("resolve %s: cache deletion did not succeed, metric must be redelivered", prior.AlertID)
	}

	// Persistence errors degrade silently here (see DESIGN.md's Open Question
	// resolutions): the cache
	// deletion above is the only RESOLVE step that must succeed. Once it has,
	// redelivery of m finds no ACTIVE state and acks as a no-op, so a failed
	// history update can never be retried — it must not block the publish.
	if err := e.History.UpdateResolution(ctx, prior.AlertID, resolvedAt, prior.DurationSeconds); err != nil {
		log.Error().Err(err).Str("alertId", prior.AlertID).Msg("alertengine: alert history resolution update failed")
	}

	if err := e.Publisher.Publish(ctx, prior); err != nil {
		return fmt.Errorf("publish resolve for %s: %w", prior.AlertID, err)
	}
	selfmetrics.AlertsResolved.WithLabelValues(string(prior.Severity)).Inc()
	return nil
}
