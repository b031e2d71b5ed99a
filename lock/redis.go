package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/generic"
)

// DefaultTTL bounds how long a crashed holder can block a tenant.
const DefaultTTL = 2 * time.Minute

// Redis is a distributed lock shared by every server process pointing at
// the same Redis. The lock is refreshed every TTL/2 while held.
type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		locker: redislock.New(client),
		ttl:    ttl,
		prefix: "lock:backfill",
		logger: logger,
	}
}

func (r *Redis) key(tenantID generic.TenantID) string {
	return fmt.Sprintf("%s:%s", r.prefix, tenantID)
}

func (r *Redis) Lock(ctx context.Context, tenantID generic.TenantID) (func(), error) {
	key := r.key(tenantID)
	l, err := r.locker.Obtain(ctx, key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, generic.ErrBackfillInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := l.Refresh(context.Background(), r.ttl, nil); err != nil {
					r.logger.Warn("failed to refresh backfill lock", zap.String("key", key), zap.Error(err))
					return
				}
			}
		}
	}()

	released := false
	return func() {
		if released {
			return
		}
		released = true
		close(stop)
		<-done
		if err := l.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("failed to release backfill lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

var _ generic.Locker = (*Redis)(nil)
