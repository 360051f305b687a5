package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server when HMS_TEST_REDIS_ADDR is set.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("HMS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HMS_TEST_REDIS_ADDR not set")
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	c, err := NewFromClient(context.Background(), rc, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = c.InvalidateReplies(context.Background())
		_ = c.Close()
	})
	return c
}

func TestReplyRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetReply(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetReply(ctx, "k1", map[string]string{"קנדיה": "production place"}))
	got, ok, err := c.GetReply(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "production place", got["קנדיה"])

	n, err := c.InvalidateReplies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConnectFailure(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rc.Close()
	_, err := NewFromClient(context.Background(), rc, time.Minute, nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}
