package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "streak:7:1970-01-01:2025-11-17", StreakKey(7, "1970-01-01", "2025-11-17"))
	assert.Equal(t, "streak:7:*", StreakPattern(7))
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	var out int
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
	assert.NoError(t, c.DeletePattern(ctx, "*"))
	assert.NoError(t, c.Close())
}

func TestRedisCache_UnreachableServerErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newRedisCache(client)
	defer c.Close()

	var out int
	err := c.Get(context.Background(), "k", &out)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
