package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLocked is returned when a tenant's previous run still holds its lock
var ErrLocked = errors.New("run already in progress")

// RunLock keeps two runs of the same tenant from overlapping. With Redis the
// lock is shared across processes; otherwise it only covers this process.
type RunLock struct {
	redis *RedisClient
	ttl   time.Duration

	mu    sync.Mutex
	local map[string]string
}

// NewRunLock creates a run lock; redis may be nil
func NewRunLock(redis *RedisClient, ttl time.Duration) *RunLock {
	return &RunLock{
		redis: redis,
		ttl:   ttl,
		local: make(map[string]string),
	}
}

// Acquire takes the tenant's lock for token and reports whether it was free
func (l *RunLock) Acquire(ctx context.Context, tenant, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.local[tenant]; held {
		return false, nil
	}
	if l.redis != nil {
		ok, err := l.redis.AcquireLock(ctx, lockKey(tenant), token, l.ttl)
		if err != nil || !ok {
			return false, err
		}
	}
	l.local[tenant] = token
	return true, nil
}

// Release frees the tenant's lock if token holds it
func (l *RunLock) Release(ctx context.Context, tenant, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.local[tenant] != token {
		return nil
	}
	delete(l.local, tenant)
	if l.redis != nil {
		return l.redis.ReleaseLock(ctx, lockKey(tenant), token)
	}
	return nil
}

func lockKey(tenant string) string {
	return fmt.Sprintf("wbstats:run:lock:%s", tenant)
}
