// Package rulestore is the queryable store of alert rules, grounded in the
// wildcard-scoped lookup query pattern the original AlertRuleRepository used,
// re-expressed with an explicit tie-break instead of relying on a collation
// coincidence (SPEC_FULL.md §8).
package rulestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qiniu/monitorflow/internal/alertdb"
	"github.com/qiniu/monitorflow/internal/eventbus"
)

// Store is the read/write interface the Alert Engine and any rule-admin
// surface depend on.
type Store interface {
	FindApplicable(ctx context.Context, serviceName string, metricType eventbus.MetricType) ([]eventbus.AlertRule, error)
	Create(ctx context.Context, r eventbus.AlertRule) error
	EnsureSeeded(ctx context.Context) error
}

// PgStore is the database/sql-backed implementation.
type PgStore struct {
	db *alertdb.Database
}

func NewPgStore(db *alertdb.Database) *PgStore { return &PgStore{db: db} }

// FindApplicable returns rules where enabled, metricType matches exactly, and
// serviceName equals either the target service or the wildcard. Specific
// rules sort strictly before wildcard rules; ties break by insertion order
// (id ascending), matching SPEC_FULL.md §8's declared tie-break.
func (s *PgStore) FindApplicable(ctx context.Context, serviceName string, metricType eventbus.MetricType) ([]eventbus.AlertRule, error) {
	const q = `
	SELECT id, rule_name, service_name, metric_type, threshold_value, comparison_operator, duration_minutes, severity, enabled, description
	FROM alert_rules
	WHERE enabled = true AND metric_type = $1 AND (service_name = $2 OR service_name = '*')
	ORDER BY (service_name = '*') ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, q, string(metricType), serviceName)
	if err != nil {
		return nil, fmt.Errorf("find applicable rules: %w", err)
	}
	defer rows.Close()

	var out []eventbus.AlertRule
	for rows.Next() {
		var r eventbus.AlertRule
		var mt, op, sev string
		if err := rows.Scan(&r.ID, &r.RuleName, &r.ServiceName, &mt, &r.ThresholdValue, &op, &r.DurationMinutes, &sev, &r.Enabled, &r.Description); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.MetricType = eventbus.MetricType(mt)
		r.ComparisonOperator = eventbus.ComparisonOperator(op)
		r.Severity = eventbus.AlertSeverity(sev)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PgStore) Create(ctx context.Context, r eventbus.AlertRule) error {
	const q = `
	INSERT INTO alert_rules (rule_name, service_name, metric_type, threshold_value, comparison_operator, duration_minutes, severity, enabled, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (rule_name) DO UPDATE SET
		service_name = EXCLUDED.service_name,
		metric_type = EXCLUDED.metric_type,
		threshold_value = EXCLUDED.threshold_value,
		comparison_operator = EXCLUDED.comparison_operator,
		duration_minutes = EXCLUDED.duration_minutes,
		severity = EXCLUDED.severity,
		enabled = EXCLUDED.enabled,
		description = EXCLUDED.description,
		updated_at = now()
	`
	_, err := s.db.ExecContext(ctx, q, r.RuleName, r.ServiceName, string(r.MetricType), r.ThresholdValue,
		string(r.ComparisonOperator), r.DurationMinutes, string(r.Severity), r.Enabled, r.Description)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// EnsureSeeded loads the default rule set (SPEC_FULL.md §8's seed rows) if
// the table is empty.
func (s *PgStore) EnsureSeeded(ctx context.Context) error {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT count(*) FROM alert_rules`)
	if err := row.Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			count = 0
		} else {
			return fmt.Errorf("count rules: %w", err)
		}
	}
	if count > 0 {
		return nil
	}
	for _, r := range DefaultRules() {
		if err := s.Create(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRules is the seed set referenced by SPEC_FULL.md §8 and its
// duration-threshold note (5, 2, 3 minutes for the three defaults).
func DefaultRules() []eventbus.AlertRule {
	return []eventbus.AlertRule{
		{
			RuleName: "cpu-high-default", ServiceName: "*", MetricType: eventbus.MetricCPU,
			ThresholdValue: 80, ComparisonOperator: eventbus.OpGT, DurationMinutes: 5,
			Severity: eventbus.SeverityHigh, Enabled: true, Description: "CPU usage sustained above 80%",
		},
		{
			RuleName: "memory-high-default", ServiceName: "*", MetricType: eventbus.MetricMemory,
			ThresholdValue: 85, ComparisonOperator: eventbus.OpGT, DurationMinutes: 2,
			Severity: eventbus.SeverityHigh, Enabled: true, Description: "Memory usage sustained above 85%",
		},
		{
			RuleName: "error-rate-critical-default", ServiceName: "*", MetricType: eventbus.MetricErrorRate,
			ThresholdValue: 5, ComparisonOperator: eventbus.OpGT, DurationMinutes: 3,
			Severity: eventbus.SeverityCritical, Enabled: true, Description: "Error rate sustained above 5%",
		},
	}
}
