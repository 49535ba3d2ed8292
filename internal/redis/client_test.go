package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	// Start miniredis server for testing
	mr, err := miniredis.Run()
	require.NoError(t, err)

	config := &Config{
		Address:  mr.Addr(),
		Password: "",
		DB:       0,
		PoolSize: 10,
	}

	client, err := NewClient(config)
	require.NoError(t, err)

	return client, mr
}

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	t.Run("successful connection", func(t *testing.T) {
		config := &Config{
			Address:  mr.Addr(),
			Password: "",
			DB:       0,
			PoolSize: 5,
		}

		client, err := NewClient(config)
		assert.NoError(t, err)
		assert.NotNil(t, client)

		err = client.Close()
		assert.NoError(t, err)
	})

	t.Run("nil config", func(t *testing.T) {
		client, err := NewClient(nil)
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "redis config is required")
	})

	t.Run("sets default pool size", func(t *testing.T) {
		config := &Config{
			Address:  mr.Addr(),
			PoolSize: 0,
		}

		client, err := NewClient(config)
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, 10, config.PoolSize)
	})

	t.Run("connection failure", func(t *testing.T) {
		config := &Config{
			Address:  "invalid:99999",
			Password: "",
			DB:       0,
			PoolSize: 5,
		}

		client, err := NewClient(config)
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})
}

func TestClient_Health(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	t.Run("healthy connection", func(t *testing.T) {
		err := client.Health()
		assert.NoError(t, err)
	})

	t.Run("unhealthy connection", func(t *testing.T) {
		// Close the miniredis server to simulate connection failure
		mr.Close()

		err := client.Health()
		assert.Error(t, err)
	})
}

func TestClient_GetSetDel(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		err := client.Set(ctx, "k1", []byte("v1"), time.Minute)
		require.NoError(t, err)

		val, err := client.Get(ctx, "k1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("v1"), val)
	})

	t.Run("get missing key returns Nil", func(t *testing.T) {
		_, err := client.Get(ctx, "absent")
		assert.Equal(t, Nil, err)
	})

	t.Run("set with expiry expires", func(t *testing.T) {
		err := client.Set(ctx, "short", []byte("v"), 10*time.Second)
		require.NoError(t, err)

		mr.FastForward(11 * time.Second)

		_, err = client.Get(ctx, "short")
		assert.Equal(t, Nil, err)
	})

	t.Run("del returns existing count", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "d1", []byte("v"), 0))

		deleted, err := client.Del(ctx, "d1", "never-existed")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	t.Run("del with no keys is a no-op", func(t *testing.T) {
		deleted, err := client.Del(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
	})

	t.Run("exists", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "e1", []byte("v"), 0))

		found, err := client.Exists(ctx, "e1")
		assert.NoError(t, err)
		assert.True(t, found)

		found, err = client.Exists(ctx, "absent")
		assert.NoError(t, err)
		assert.False(t, found)
	})
}

func TestClient_Sets(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	t.Run("sadd and smembers", func(t *testing.T) {
		err := client.SAdd(ctx, "tag:equipment", "k1", "k2")
		require.NoError(t, err)

		members, err := client.SMembers(ctx, "tag:equipment")
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"k1", "k2"}, members)
	})

	t.Run("smembers on missing set is empty", func(t *testing.T) {
		members, err := client.SMembers(ctx, "tag:absent")
		assert.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("expire on set", func(t *testing.T) {
		require.NoError(t, client.SAdd(ctx, "tag:short", "k1"))
		require.NoError(t, client.Expire(ctx, "tag:short", 5*time.Second))

		mr.FastForward(6 * time.Second)

		members, err := client.SMembers(ctx, "tag:short")
		assert.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestClient_Patterns(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "hvac:cache:a", []byte("1"), 0))
	require.NoError(t, client.Set(ctx, "hvac:cache:b", []byte("2"), 0))
	require.NoError(t, client.Set(ctx, "unrelated:c", []byte("3"), 0))

	t.Run("keys lists matching only", func(t *testing.T) {
		keys, err := client.Keys(ctx, "hvac:cache:*")
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"hvac:cache:a", "hvac:cache:b"}, keys)
	})

	t.Run("delete by pattern spares unrelated keys", func(t *testing.T) {
		deleted, err := client.DeleteByPattern(ctx, "hvac:cache:*")
		assert.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		found, err := client.Exists(ctx, "unrelated:c")
		assert.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("delete by pattern with no matches", func(t *testing.T) {
		deleted, err := client.DeleteByPattern(ctx, "hvac:cache:*")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
	})
}

func TestClient_ActiveConnections(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	// The ping at construction opens at least one connection
	assert.GreaterOrEqual(t, client.ActiveConnections(), 0)
}
