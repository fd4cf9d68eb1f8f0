package session

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAuthClient/api"
)

// ErrNoProfile is returned by Load when no member is signed in under the key.
var ErrNoProfile = errors.New("no signed-in profile")

// ErrRedisUnavailable wraps Redis transport failures of RedisStore.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrProfileCorrupt is returned when a stored profile cannot be decoded.
var ErrProfileCorrupt = errors.New("stored profile corrupt")

// Store persists the signed-in member under an opaque session key.
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, key string) (api.Member, error)
	Save(ctx context.Context, key string, m api.Member) error
	// Clear is idempotent.
	Clear(ctx context.Context, key string) error
}
