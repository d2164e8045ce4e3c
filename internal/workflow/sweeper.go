package workflow

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs the expiry sweep on a fixed cadence. The sweep is idempotent
// so overlapping runs after a slow tick are harmless.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{service: service, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := s.service.SweepExpired(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				s.logger.InfoContext(ctx, "expiry sweep", "expired", expired)
			}
		}
	}
}
