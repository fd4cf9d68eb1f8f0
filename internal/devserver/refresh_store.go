package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshNotFound is returned for unknown, expired or revoked families.
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrRefreshReused is returned when an already rotated secret is presented;
	// the whole family is revoked.
	ErrRefreshReused = errors.New("refresh token reuse detected")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const rotateRefreshScript = `
local member = redis.call("HGET", KEYS[1], "member")
if not member then
  return {0}
end
local current = redis.call("HGET", KEYS[1], "hash")
if current ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return {2}
end
redis.call("HSET", KEYS[1], "hash", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {3, member}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// refreshStore keeps one hash per token family under <prefix>:refresh:<family>.
type refreshStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func newRefreshStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *refreshStore {
	return &refreshStore{redis: rdb, prefix: prefix, ttl: ttl}
}

func (s *refreshStore) key(f familyID) string {
	return s.prefix + ":refresh:" + f.String()
}

// Issue starts a new family for memberID and returns its first token.
func (s *refreshStore) Issue(ctx context.Context, memberID string) (string, error) {
	f, err := newFamilyID()
	if err != nil {
		return "", err
	}
	secret, err := newRefreshSecret()
	if err != nil {
		return "", err
	}

	key := s.key(f)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "member", memberID, "hash", secret.hash())
		pipe.PExpire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return encodeRefreshToken(f, secret), nil
}

// Rotate atomically swaps the presented secret for a new one and returns the
// member and next token.
func (s *refreshStore) Rotate(ctx context.Context, token string) (memberID, next string, err error) {
	f, secret, err := decodeRefreshToken(token)
	if err != nil {
		return "", "", errors.Join(ErrRefreshNotFound, err)
	}
	nextSecret, err := newRefreshSecret()
	if err != nil {
		return "", "", err
	}

	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(f)},
		secret.hash(),
		nextSecret.hash(),
		s.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", "", fmt.Errorf("%w: invalid refresh script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", "", fmt.Errorf("%w: invalid refresh script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return "", "", ErrRefreshNotFound
	case rotateStatusMismatch:
		return "", "", ErrRefreshReused
	case rotateStatusRotated:
		if len(parts) < 2 {
			return "", "", fmt.Errorf("%w: missing member", ErrRedisUnavailable)
		}
		member, ok := parts[1].(string)
		if !ok {
			return "", "", fmt.Errorf("%w: invalid member payload", ErrRedisUnavailable)
		}
		return member, encodeRefreshToken(f, nextSecret), nil
	default:
		return "", "", fmt.Errorf("%w: unknown refresh script status", ErrRedisUnavailable)
	}
}

// Revoke deletes the family of token. Unknown tokens are ignored.
func (s *refreshStore) Revoke(ctx context.Context, token string) error {
	f, _, err := decodeRefreshToken(token)
	if err != nil {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(f)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAll deletes every family. Admin/test only: O(n) SCAN.
func (s *refreshStore) RevokeAll(ctx context.Context) (int, error) {
	pattern := s.prefix + ":refresh:*"
	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			if err := s.redis.Del(ctx, keys...).Err(); err != nil {
				return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			total += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}
