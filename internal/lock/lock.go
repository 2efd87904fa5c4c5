package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/farmdirect/marketplace/internal/redisx"
)

// DefaultTTL bounds how long a crashed holder can block other writers.
const DefaultTTL = 30 * time.Second

// ErrNotObtained means the resource is locked by someone else right now.
// Callers should report "busy" instead of retrying internally.
var ErrNotObtained = errors.New("lock not obtained")

// Handle identifies one successful acquisition. Release with a stale handle
// (TTL expired, key reacquired by another owner) is a no-op.
type Handle struct {
	ResourceKey string
	OwnerToken  string
}

type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

// Delete only if the stored token is still ours, in one round trip.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Acquire creates lock:{resourceKey} with a fresh owner token, only if the
// key is absent. The key expires after the locker's TTL even if the holder
// never releases it.
func (l *Locker) Acquire(ctx context.Context, resourceKey string) (*Handle, error) {
	key := fmt.Sprintf(redisx.KeyLock, resourceKey)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotObtained
	}
	return &Handle{ResourceKey: resourceKey, OwnerToken: token}, nil
}

// Release frees the lock if this handle still owns it. Absent or
// foreign-owned keys are left alone and no error is returned.
func (l *Locker) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	key := fmt.Sprintf(redisx.KeyLock, h.ResourceKey)
	return releaseScript.Run(ctx, l.rdb, []string{key}, h.OwnerToken).Err()
}
