package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var advanceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local next = tonumber(ARGV[1])
if next > current then
  redis.call('SET', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStateStore keeps the update dedup marker and short-lived locks.
type RedisStateStore struct {
	client *RedisClient
}

func NewRedisStateStore(redisClient *RedisClient) *RedisStateStore {
	return &RedisStateStore{client: redisClient}
}

func (s *RedisStateStore) markerKey() string {
	return s.client.generateKey("last_update_id")
}

func (s *RedisStateStore) lockKey(name string) string {
	return s.client.generateKey("lock", name)
}

func (s *RedisStateStore) AdvanceUpdateID(ctx context.Context, id int64) (bool, error) {
	res, err := s.client.Eval(ctx, advanceScript, []string{s.markerKey()}, id)
	if err != nil {
		return false, fmt.Errorf("advance update marker: %w", err)
	}
	n, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("advance update marker: unexpected reply %T", res)
	}
	return n == 1, nil
}

func (s *RedisStateStore) LastUpdateID(ctx context.Context) (int64, error) {
	id, err := s.client.client.Get(ctx, s.markerKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return id, err
}

func (s *RedisStateStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey(name), token, ttl)
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock deletes the lock only while it still holds token.
func (s *RedisStateStore) ReleaseLock(ctx context.Context, name, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.client.Eval(ctx, releaseScript, []string{s.lockKey(name)}, token); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
