package rulestore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiniu/monitorflow/internal/alertdb"
	"github.com/qiniu/monitorflow/internal/eventbus"
)

func dialOrSkip(t *testing.T) *PgStore {
	dsn := os.Getenv("MONITORFLOW_TEST_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=admin password=password dbname=monitorflow sslmode=disable"
	}
	db, err := alertdb.New(dsn)
	if err != nil {
		t.Skip("Postgres not available, skipping test")
	}
	return NewPgStore(db)
}

func TestFindApplicableOrdersSpecificBeforeWildcard(t *testing.T) {
	s := dialOrSkip(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, eventbus.AlertRule{
		RuleName: "wildcard-memory-high", ServiceName: "*", MetricType: eventbus.MetricMemory,
		ThresholdValue: 85, ComparisonOperator: eventbus.OpGT, Severity: eventbus.SeverityHigh, Enabled: true,
	}))
	require.NoError(t, s.Create(ctx, eventbus.AlertRule{
		RuleName: "db-memory-critical", ServiceName: "db", MetricType: eventbus.MetricMemory,
		ThresholdValue: 90, ComparisonOperator: eventbus.OpGT, Severity: eventbus.SeverityCritical, Enabled: true,
	}))

	rules, err := s.FindApplicable(ctx, "db", eventbus.MetricMemory)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rules), 2)
	assert.Equal(t, "db", rules[0].ServiceName)
	assert.Equal(t, "*", rules[len(rules)-1].ServiceName)
}

func TestEnsureSeededIsIdempotent(t *testing.T) {
	s := dialOrSkip(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSeeded(ctx))
	require.NoError(t, s.EnsureSeeded(ctx))
}
