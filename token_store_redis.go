package axnext

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	redisTokenStateField   = "state"
	redisTokenRefreshField = "refresh"
)

// RedisTokenStore keeps credentials in a single Redis hash so several
// processes can share one login.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

var _ TokenStore = (*RedisTokenStore)(nil)

// NewRedisTokenStore stores credentials under key.
func NewRedisTokenStore(client *redis.Client, key string) *RedisTokenStore {
	return &RedisTokenStore{client: client, key: key}
}

func (s *RedisTokenStore) Load(ctx context.Context) (TokenState, bool, error) {
	data, err := s.client.HGet(ctx, s.key, redisTokenStateField).Bytes()
	if err == redis.Nil {
		return TokenState{}, false, nil
	}
	if err != nil {
		return TokenState{}, false, errors.Wrap(err, "redis hget token state")
	}
	var state TokenState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return TokenState{}, false, errors.Wrap(err, "decode token state")
	}
	return state, true, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, state TokenState) error {
	data, err := msgpack.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode token state")
	}
	if err := s.client.HSet(ctx, s.key, redisTokenStateField, data).Err(); err != nil {
		return errors.Wrap(err, "redis hset token state")
	}
	return nil
}

func (s *RedisTokenStore) RefreshToken(ctx context.Context) (string, error) {
	v, err := s.client.HGet(ctx, s.key, redisTokenRefreshField).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "redis hget refresh token")
	}
	return v, nil
}

func (s *RedisTokenStore) SetRefreshToken(ctx context.Context, refreshToken string) error {
	if err := s.client.HSet(ctx, s.key, redisTokenRefreshField, refreshToken).Err(); err != nil {
		return errors.Wrap(err, "redis hset refresh token")
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "redis del token")
	}
	return nil
}
