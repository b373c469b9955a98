package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialOrSkip(t *testing.T) (*RedisClient, context.Context) {
	c := NewRedisClient("localhost:6379", "", 0)
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skip("Redis not available, skipping test")
	}
	return c, ctx
}

func TestRedisClientSetGetDelete(t *testing.T) {
	c, ctx := dialOrSkip(t)

	key := MetricKey("cache-test-svc", "CPU")
	defer c.Delete(ctx, key)

	ok := c.Set(ctx, key, []byte(`{"value":1}`), time.Minute)
	require.True(t, ok)

	val, found := c.Get(ctx, key)
	require.True(t, found)
	assert.Equal(t, `{"value":1}`, string(val))

	assert.True(t, c.Delete(ctx, key))

	_, found = c.Get(ctx, key)
	assert.False(t, found)
}

func TestRedisClientGetMissReturnsEmptyNotError(t *testing.T) {
	c, ctx := dialOrSkip(t)
	_, found := c.Get(ctx, MetricKey("never-set-svc", "CPU"))
	assert.False(t, found)
}

func TestRedisClientScanByPrefix(t *testing.T) {
	c, ctx := dialOrSkip(t)
	keys := []string{MetricKey("scan-test", "CPU"), MetricKey("scan-test", "MEMORY")}
	for _, k := range keys {
		c.Set(ctx, k, []byte("1"), time.Minute)
	}
	defer func() {
		for _, k := range keys {
			c.Delete(ctx, k)
		}
	}()

	found := c.Scan(ctx, MetricKeyPrefix("scan-test"))
	assert.GreaterOrEqual(t, len(found), 2)
}
