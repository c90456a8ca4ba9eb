package indexer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/soundvine/discovery-indexer/internal/adapter"
	"github.com/soundvine/discovery-indexer/internal/domain"
)

const lockKey = "discovery:indexing_lock"

// releaseScript deletes the lock only if this worker still holds it, so a
// worker whose lease expired cannot release a lock another worker now owns.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lock is the distributed lease that serializes indexing cycles across
// worker replicas. The lease expires on its own if a holder dies mid-cycle.
type Lock struct {
	redis adapter.RedisClient
	clock adapter.Clock
	lease time.Duration
	wait  time.Duration
	token string
}

// NewLock creates an indexing lock
func NewLock(redis adapter.RedisClient, clock adapter.Clock, lease, wait time.Duration) *Lock {
	return &Lock{
		redis: redis,
		clock: clock,
		lease: lease,
		wait:  wait,
	}
}

// Acquire blocks until the lock is held or the wait budget runs out, in
// which case it returns domain.ErrLockNotAcquired.
func (l *Lock) Acquire(ctx context.Context) error {
	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("failed to generate lock token: %w", err)
	}

	deadline := l.clock.Now().Add(l.wait)
	for {
		acquired, err := l.redis.SetNX(ctx, lockKey, token, l.lease)
		if err != nil {
			return fmt.Errorf("failed to acquire indexing lock: %w", err)
		}
		if acquired {
			l.token = token
			return nil
		}

		if l.clock.Now().After(deadline) {
			return domain.ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Release gives the lock up if this worker still holds it
func (l *Lock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}

	_, err := l.redis.Eval(ctx, releaseScript, []string{lockKey}, l.token)
	l.token = ""
	if err != nil {
		return fmt.Errorf("failed to release indexing lock: %w", err)
	}

	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
