package database

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisPoolSnapshot(t *testing.T) {
	assert.Equal(t, RedisPoolStats{}, RedisPoolSnapshot(nil))

	// No command is issued, so the pool stays empty and nothing dials.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	stats := RedisPoolSnapshot(client)
	assert.Zero(t, stats.TotalConns)
	assert.Zero(t, stats.Hits)
}

func TestDefaultRedisConfigReadsPoolSize(t *testing.T) {
	t.Setenv("REDIS_POOL_SIZE", "42")
	assert.Equal(t, 42, DefaultRedisConfig().PoolSize)
}
