// Package alertstore is the alert history store: append on TRIGGER, one
// update on RESOLVE, per SPEC_FULL.md §7. Built on database/sql
// + lib/pq behind the alertdb.Database wrapper, matching the CRUD idiom the
// rest of the codebase's low-volume Postgres stores use.
package alertstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"context"

	"github.com/lib/pq"

	"github.com/qiniu/monitorflow/internal/alertdb"
	"github.com/qiniu/monitorflow/internal/eventbus"
)

// Store persists AlertEvents and applies the single resolution update.
type Store interface {
	Insert(ctx context.Context, a eventbus.AlertEvent) error
	UpdateResolution(ctx context.Context, alertID string, resolvedAt eventbus.WireTime, durationSeconds int64) error
	FindByAlertID(ctx context.Context, alertID string) (*eventbus.AlertEvent, bool, error)
}

// PgStore is the database/sql-backed implementation.
type PgStore struct {
	db *alertdb.Database
}

func NewPgStore(db *alertdb.Database) *PgStore { return &PgStore{db: db} }

// Insert persists a new alert row. A unique-index violation on alert_id is
// treated as success (SPEC_FULL.md §7's idempotent re-persist rule).
func (s *PgStore) Insert(ctx context.Context, a eventbus.AlertEvent) error {
	metadata, _ := json.Marshal(a.Metadata)
	const q = `
	INSERT INTO alerts (alert_id, service_name, alert_type, severity, status, message, description,
		threshold_value, current_value, triggered_at, resolved_at, duration_seconds, hostname, environment, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	var resolvedAt any
	if a.ResolvedAt != nil {
		resolvedAt = a.ResolvedAt.Time
	}
	_, err := s.db.ExecContext(ctx, q,
		a.AlertID, a.ServiceName, a.AlertType, string(a.Severity), string(a.Status), a.Message, a.Description,
		a.ThresholdValue, a.CurrentValue, a.TriggeredAt.Time, resolvedAt, a.DurationSeconds, a.Hostname, string(a.Environment), string(metadata),
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// UpdateResolution applies the single RESOLVE-time mutation the schema
// permits after insertion.
func (s *PgStore) UpdateResolution(ctx context.Context, alertID string, resolvedAt eventbus.WireTime, durationSeconds int64) error {
	const q = `UPDATE alerts SET status = $2, resolved_at = $3, duration_seconds = $4 WHERE alert_id = $1`
	_, err := s.db.ExecContext(ctx, q, alertID, string(eventbus.StatusResolved), resolvedAt.Time, durationSeconds)
	if err != nil {
		return fmt.Errorf("update alert resolution: %w", err)
	}
	return nil
}

func (s *PgStore) FindByAlertID(ctx context.Context, alertID string) (*eventbus.AlertEvent, bool, error) {
	const q = `
	SELECT alert_id, service_name, alert_type, severity, status, message, description,
		threshold_value, current_value, triggered_at, resolved_at, duration_seconds, hostname, environment, metadata
	FROM alerts WHERE alert_id = $1
	`
	row := s.db.QueryRowContext(ctx, q, alertID)
	var a eventbus.AlertEvent
	var severity, status, environment string
	var resolvedAt sql.NullTime
	var metadata sql.NullString
	err := row.Scan(&a.AlertID, &a.ServiceName, &a.AlertType, &severity, &status, &a.Message, &a.Description,
		&a.ThresholdValue, &a.CurrentValue, &a.TriggeredAt.Time, &resolvedAt, &a.DurationSeconds, &a.Hostname, &environment, &metadata)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find alert by id: %w", err)
	}
	a.Severity = eventbus.AlertSeverity(severity)
	a.Status = eventbus.AlertStatus(status)
	a.Environment = eventbus.Environment(environment)
	if resolvedAt.Valid {
		wt := eventbus.NewWireTime(resolvedAt.Time)
		a.ResolvedAt = &wt
	}
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &a.Metadata)
	}
	return &a, true, nil
}
