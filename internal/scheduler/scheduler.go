package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every polling interval.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour. IntervalFunc is consulted before arming
// each tick, so interval changes (a settings update from another invocation)
// take effect at the next cycle without interrupting one in flight.
type Options struct {
	IntervalFunc func() time.Duration
}

// Scheduler drives periodic execution of the sync cycle.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.IntervalFunc == nil {
		panic("scheduler interval func must be set")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function on every interval until ctx is
// cancelled. A tick error is logged, never fatal to the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	for {
		interval := s.opts.IntervalFunc()
		if interval <= 0 {
			interval = time.Minute
		}

		timer := time.NewTimer(interval)
		s.logger.Debug().Dur("interval", interval).Msg("waiting for next poll")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		s.logger.Info().Msg("executing scheduled poll")
		if err := tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("tick execution failed")
		}
	}
}
