package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is the unit of work executed by a periodic job. Errors are logged and
// swallowed at this boundary; a failing run never prevents the next one.
type Task func(ctx context.Context) error

// PeriodicConfig configures a periodic job.
type PeriodicConfig struct {
	Interval   time.Duration
	RunOnStart bool
	// Ticks overrides the interval ticker when set. Tests push ticks on it
	// to drive the loop without waiting on wall-clock time.
	Ticks  <-chan time.Time
	Logger *zap.Logger
}

// Periodic runs a named task on a fixed interval with overlap suppression:
// at most one run of the task is in flight at any time, whether triggered by
// the ticker or by Run.
type Periodic struct {
	name string
	task Task

	interval   time.Duration
	runOnStart bool
	ticks      <-chan time.Time
	logger     *zap.Logger

	running atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPeriodic builds a periodic job around the provided task.
func NewPeriodic(name string, task Task, cfg PeriodicConfig) *Periodic {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Periodic{
		name:       name,
		task:       task,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		ticks:      cfg.Ticks,
		logger:     cfg.Logger,
	}
}

// Start launches the ticker loop. Safe to call once.
func (p *Periodic) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	p.wg.Add(1)
	go p.loop(ctx)
	p.logger.Sugar().Infow("periodic job started", "job", p.name, "interval", p.interval)
}

// Stop cancels the loop and waits for any in-flight run to finish.
func (p *Periodic) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Sugar().Infow("periodic job stopped", "job", p.name)
}

// Run executes the task immediately unless a run is already in flight, in
// which case it reports false. This is the on-demand trigger; it shares the
// overlap guard with the ticker loop.
func (p *Periodic) Run(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Sugar().Infow("run skipped, previous run still in flight", "job", p.name)
		return false
	}
	defer p.running.Store(false)

	start := time.Now()
	if err := p.task(ctx); err != nil {
		p.logger.Sugar().Errorw("periodic job run failed", "job", p.name, "error", err)
		return true
	}
	p.logger.Sugar().Debugw("periodic job run finished", "job", p.name, "duration", time.Since(start))
	return true
}

func (p *Periodic) loop(ctx context.Context) {
	defer p.wg.Done()

	if p.runOnStart {
		p.Run(ctx)
	}

	ticks := p.ticks
	if ticks == nil {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			p.Run(ctx)
		}
	}
}
