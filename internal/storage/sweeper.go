package storage

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

// Purger is implemented by adapters without native expiry.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically deletes entries not written within ttl. A ttl of
// zero keeps entries forever.
type Sweeper struct {
	store Purger
	ttl   time.Duration
	tick  time.Duration
	log   *logger.Logger
	now   func() time.Time
}

func NewSweeper(store Purger, ttl, tick time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{store: store, ttl: ttl, tick: tick, log: log.Named("sweeper"), now: time.Now}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	n, err := s.store.PurgeOlderThan(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.log.Warn(ctx, "storage sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info(ctx, "expired entries purged", zap.Int64("count", n))
	}
}
