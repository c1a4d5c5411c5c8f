package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quantyard/trendrank/internal/oracle"
)

const redisKeyPrefix = "trendrank:q:"

// RedisStore backs the query cache with Redis for deployments where the
// cache must outlive container teardown. Entries never expire; the cache is
// append-only until a manual Clear.
type RedisStore struct {
	client redis.Cmdable
	ctx    context.Context
	closer func() error
}

// NewRedisStore connects to Redis at addr.
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisStore{client: client, ctx: context.Background(), closer: client.Close}
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, ctx: context.Background(), closer: func() error { return nil }}
}

func (s *RedisStore) Get(key Key) (oracle.Response, bool) {
	raw, err := s.client.Get(s.ctx, redisKeyPrefix+string(key)).Result()
	if err != nil {
		return nil, false
	}
	var resp oracle.Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false
	}
	return resp, true
}

func (s *RedisStore) Put(key Key, resp oracle.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	// SetNX keeps puts idempotent: an existing entry is never overwritten.
	return s.client.SetNX(s.ctx, redisKeyPrefix+string(key), data, 0).Err()
}

func (s *RedisStore) Len() int {
	keys, err := s.client.Keys(s.ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}

func (s *RedisStore) Close() error { return s.closer() }

// Clear deletes every cached query. Whole-cache invalidation only.
func (s *RedisStore) Clear() error {
	keys, err := s.client.Keys(s.ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(s.ctx, keys...).Err()
}
