package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sweepLockName = "reconciliation_sweep_lock"

// SweepLock keeps a single replica running the reconciliation sweep at a time
type SweepLock struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger zerolog.Logger
}

// NewSweepLock creates a redsync backed lock
func NewSweepLock(client *redis.Client, expiry time.Duration, logger zerolog.Logger) *SweepLock {
	pool := goredis.NewPool(client)
	return &SweepLock{rs: redsync.New(pool), expiry: expiry, logger: logger}
}

// Run executes fn while holding the lock. When another replica holds it, fn is
// skipped and Run returns false without error.
func (l *SweepLock) Run(ctx context.Context, fn func(context.Context) error) (bool, error) {
	mutex := l.rs.NewMutex(
		sweepLockName,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			l.logger.Info().Msg("Sweep already running on another replica, skipping")
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to release sweep lock")
		}
	}()

	return true, fn(ctx)
}
