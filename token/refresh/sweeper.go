package refresh

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically purges expired and revoked refresh token records.
// It runs on its own schedule and never blocks request handling; a store
// failure is logged and retried on the next tick.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a Sweeper. The interval should be minutes, not seconds:
// purging is bulk hygiene, not a hot path.
func NewSweeper(manager *Manager, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		manager:  manager,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.manager.PurgeExpired(ctx, s.manager.nowFunc())
	if err != nil {
		s.logger.Warn().Err(err).Msg("refresh token purge failed, retrying next tick")
		return
	}
	if count > 0 {
		s.logger.Info().Int64("purged", count).Msg("purged expired refresh tokens")
	}
}
