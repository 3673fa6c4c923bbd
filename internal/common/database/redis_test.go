package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtl-testgen/internal/common/config"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestIncrementWithTTL(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.IncrementWithTTL(ctx, map[string]int64{"a": 2, "b": 1}, time.Hour))
	require.NoError(t, client.IncrementWithTTL(ctx, map[string]int64{"a": 3}, time.Hour))

	a, err := client.GetInt(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), a)
	assert.Equal(t, time.Hour, mr.TTL("a"))

	missing, err := client.GetInt(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, missing)
}

func TestGetInt_NonInteger(t *testing.T) {
	mr, client := setupMiniredis(t)
	require.NoError(t, mr.Set("bad", "abc"))

	_, err := client.GetInt(context.Background(), "bad")
	assert.Error(t, err)
}

func TestPing_ServerDown(t *testing.T) {
	mr, client := setupMiniredis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, client.Ping(ctx))
}

func TestNewRedisFromClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()))
}
