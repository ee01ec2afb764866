package maintenance

import (
	"context"
	"time"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

const DefaultInterval = 10 * time.Minute

// Purger removes expired records and reports how many were removed
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Target struct {
	Name   string
	Purger Purger
}

// Sweeper periodically removes expired tokens
type Sweeper struct {
	interval time.Duration
	logger   logger.Logger
	targets  []Target
}

func NewSweeper(interval time.Duration, l logger.Logger, targets ...Target) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		interval: interval,
		logger:   l.With("component", "sweeper"),
		targets:  targets,
	}
}

// Run sweeps every interval until ctx is done.
// Returned channel is closed when the sweeper stopped.
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval, "targets", len(s.targets))

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Sweep runs every purger once. A failed purger does not stop the rest.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, t := range s.targets {
		if ctx.Err() != nil {
			return
		}

		n, err := t.Purger.PurgeExpired(ctx)
		if err != nil {
			s.logger.Error("Failed to purge expired records", "target", t.Name, "error", err)
			continue
		}
		if n > 0 {
			s.logger.Info("Expired records purged", "target", t.Name, "count", n)
		}
	}
}
