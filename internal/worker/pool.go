package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sweeper runs the daily missed-day sweep over every inactive player.
type Sweeper interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// Pool runs a set of workers plus an optional sweep ticker until its
// context ends.
type Pool struct {
	workers       []*Worker
	sweeper       Sweeper
	sweepInterval time.Duration
	log           *slog.Logger
}

// NewPool groups workers. A nil sweeper or a zero interval disables the
// sweep ticker.
func NewPool(workers []*Worker, sweeper Sweeper, sweepInterval time.Duration, log *slog.Logger) *Pool {
	return &Pool{
		workers:       workers,
		sweeper:       sweeper,
		sweepInterval: sweepInterval,
		log:           log,
	}
}

// Run blocks until ctx is cancelled and every goroutine has returned.
func (p *Pool) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		eg.Go(func() error {
			return w.Run(egCtx)
		})
	}
	if p.sweeper != nil && p.sweepInterval > 0 {
		eg.Go(func() error {
			p.sweepLoop(egCtx)
			return nil
		})
	}
	p.log.Info("Worker pool started", "workers", len(p.workers), "sweep_interval", p.sweepInterval)
	err := eg.Wait()
	p.log.Info("Worker pool stopped")
	return err
}

func (p *Pool) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			swept, err := p.sweeper.Run(ctx, now)
			if err != nil && ctx.Err() == nil {
				p.log.Error("Sweep failed", "error", err, "swept", swept)
			}
		}
	}
}
