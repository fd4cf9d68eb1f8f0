package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAuthClient/api"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps profiles as JSON under <prefix>:profile:<key>.
//
// A zero ttl stores profiles without expiry.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "goauthclient"
	}
	return &RedisStore{
		redis:  rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":profile:" + key
}

// Load refreshes the TTL on every hit, so an active member never expires.
func (s *RedisStore) Load(ctx context.Context, key string) (api.Member, error) {
	var m api.Member

	var (
		data []byte
		err  error
	)
	if s.ttl > 0 {
		data, err = s.redis.GetEx(ctx, s.key(key), s.ttl).Bytes()
	} else {
		data, err = s.redis.Get(ctx, s.key(key)).Bytes()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return m, ErrNoProfile
		}
		return m, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := json.Unmarshal(data, &m); err != nil {
		return api.Member{}, errors.Join(ErrProfileCorrupt, err)
	}
	return m, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, m api.Member) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
