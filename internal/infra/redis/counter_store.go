package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore implements app.CounterStore with one Redis key per
// (action, caller) window. The increment-or-start is a single script so
// concurrent requests from the same caller cannot lose updates.
type CounterStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewCounterStore(client *redis.Client) *CounterStore {
	return &CounterStore{client: client, clock: time.Now}
}

var incrWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

func (s *CounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	result, err := incrWindowScript.Run(ctx, s.client, []string{"ratelimit:" + key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate counter: %w", err)
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script reply %v", result)
	}
	count := toInt64(values[0])
	ttl := toInt64(values[1])
	resetAt := s.clock().Add(time.Duration(ttl) * time.Millisecond)
	return count, resetAt, nil
}
