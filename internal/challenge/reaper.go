package challenge

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/redmonkez12/otp-auth-api/internal/logging"
)

// Purger removes expired challenges from a store
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Reaper periodically purges expired challenges. It only reclaims storage:
// every store already treats expired records as absent.
type Reaper struct {
	store    Purger
	interval time.Duration
	clock    clockwork.Clock
	logger   *logging.Logger
}

func NewReaper(store Purger, interval time.Duration, clock clockwork.Clock, logger *logging.Logger) *Reaper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reaper{store: store, interval: interval, clock: clock, logger: logger}
}

// Run purges once per interval until ctx is cancelled
func (r *Reaper) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge and logs the outcome
func (r *Reaper) RunOnce(ctx context.Context) int64 {
	n, err := r.store.DeleteExpired(ctx)
	if err != nil {
		r.logger.Warn("failed to purge expired challenges", "error", err)
		return 0
	}
	if n > 0 {
		r.logger.Debug("purged expired challenges", "count", n)
	}
	return n
}
