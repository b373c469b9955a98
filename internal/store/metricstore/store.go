// Package metricstore is the append-mostly metric history store. It uses
// jackc/pgx/v5's pgxpool directly rather than database/sql, because this is
// the Aggregator's high-throughput write path and the pack's other stores
// already carry pgx as a dependency for exactly this kind of pool.
package metricstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qiniu/monitorflow/internal/eventbus"
)

// Store persists MetricEvents into the metrics table.
type Store interface {
	Insert(ctx context.Context, m eventbus.MetricEvent) error
	Close()
}

// PgxStore is the pgxpool-backed Store implementation.
type PgxStore struct {
	pool *pgxpool.Pool
}

// New opens a pgxpool against dsn.
func New(ctx context.Context, dsn string) (*PgxStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open metric store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping metric store: %w", err)
	}
	return &PgxStore{pool: pool}, nil
}

func (s *PgxStore) Insert(ctx context.Context, m eventbus.MetricEvent) error {
	tags, _ := json.Marshal(m.Tags)
	const q = `
	INSERT INTO metrics (service_name, metric_type, metric_value, unit, timestamp, hostname, environment, version, tags)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, q,
		m.ServiceName, string(m.MetricType), m.MetricValue, m.Unit, m.Timestamp.Time,
		m.Hostname, string(m.Environment), m.Version, string(tags),
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

func (s *PgxStore) Close() {
	s.pool.Close()
}
