package axnext

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultRedisCachePrefix namespaces cache keys in Redis.
const DefaultRedisCachePrefix = "axnext:cache"

// RedisCacheStore keeps cache entries in Redis, encoded with msgpack. Redis
// key expiry does the sweeping.
// The caller owns the redis.Client lifecycle.
type RedisCacheStore struct {
	client *redis.Client
	prefix string
}

var _ CacheStore = (*RedisCacheStore)(nil)

// NewRedisCacheStore returns a store using prefix for its keys. An empty
// prefix selects DefaultRedisCachePrefix.
func NewRedisCacheStore(client *redis.Client, prefix string) *RedisCacheStore {
	if prefix == "" {
		prefix = DefaultRedisCachePrefix
	}
	return &RedisCacheStore{client: client, prefix: prefix}
}

func (s *RedisCacheStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) (*CacheEntry, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	var entry CacheEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, false, errors.Wrap(err, "decode cache entry")
	}
	return &entry, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, entry *CacheEntry) error {
	if entry.TTL <= 0 {
		return s.Delete(ctx, key)
	}
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode cache entry")
	}
	if err := s.client.Set(ctx, s.key(key), data, entry.TTL).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *RedisCacheStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// Clear deletes every key under the store prefix.
func (s *RedisCacheStore) Clear(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
