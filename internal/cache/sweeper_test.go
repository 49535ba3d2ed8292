package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RemovesExpiredEntries(t *testing.T) {
	engine, _ := setupTestEngine(t, Config{})
	ctx := context.Background()

	clock := time.Now()
	engine.now = func() time.Time { return clock }

	require.NoError(t, engine.Set(ctx, "stale1", "v", SetOptions{TTL: time.Minute, Tier: TierL1Memory}))
	require.NoError(t, engine.Set(ctx, "stale2", "v", SetOptions{TTL: time.Minute, Tier: TierL1Memory}))
	require.NoError(t, engine.Set(ctx, "fresh", "v", SetOptions{TTL: time.Hour, Tier: TierL1Memory}))

	clock = clock.Add(10 * time.Minute)
	engine.sweeper.sweep()

	assert.Equal(t, 1, engine.l1.len())
	assert.Equal(t, int64(2), engine.Metrics().EvictionCount)

	// A second pass finds nothing and leaves the counter alone
	engine.sweeper.sweep()
	assert.Equal(t, int64(2), engine.Metrics().EvictionCount)
}

func TestSweeper_StartStop(t *testing.T) {
	engine, _ := setupTestEngine(t, Config{CleanupInterval: time.Second})

	require.NoError(t, engine.sweeper.start())
	engine.sweeper.stop()
}
