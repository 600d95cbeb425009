package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

// incrScript bumps a window counter and sets its expiry in one round trip.
var incrScript = redis.NewScript(`
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if tonumber(v) == tonumber(ARGV[1]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return v
`)

// RedisCounter is an httprate.LimitCounter shared by every replica.
type RedisCounter struct {
	client  redis.UniversalClient
	prefix  string
	window  time.Duration
	timeout time.Duration
}

var _ httprate.LimitCounter = (*RedisCounter)(nil)

func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "parcels:ratelimit"
	}
	return &RedisCounter{client: client, prefix: prefix, timeout: 500 * time.Millisecond}
}

func (c *RedisCounter) Config(requestLimit int, windowLength time.Duration) {
	c.window = windowLength
}

func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	// Keep two windows around so Get can weigh the previous one.
	ttl := 3 * c.window
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := incrScript.Run(ctx, c.client, []string{c.key(key, currentWindow)}, amount, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis rate counter: %w", err)
	}
	return nil
}

func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	vals, err := c.client.MGet(ctx, c.key(key, currentWindow), c.key(key, previousWindow)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis rate counter: %w", err)
	}
	return toInt(vals[0]), toInt(vals[1]), nil
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return c.prefix + ":" + key + ":" + strconv.FormatInt(window.Unix(), 10)
}

func toInt(v any) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
