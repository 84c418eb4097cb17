// Package poller schedules periodic reconciliation passes.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"pr-build-watcher/internal/reconciler"

	"go.uber.org/zap"
)

// Poller invokes reconciliation on a fixed interval. Ticks are not
// re-entrant: when a pass is still running the tick is skipped, not queued.
type Poller struct {
	log         *zap.SugaredLogger
	repo        *reconciler.Repository
	interval    time.Duration
	passTimeout time.Duration
	running     atomic.Bool
}

// New constructs a poller for one monitored repository.
func New(log *zap.SugaredLogger, repo *reconciler.Repository, interval, passTimeout time.Duration) *Poller {
	return &Poller{
		log:         log.Named("poller"),
		repo:        repo,
		interval:    interval,
		passTimeout: passTimeout,
	}
}

// Run loops until the context is cancelled. Each pass is bounded by the
// configured timeout so a hung upstream call cannot starve later ticks.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infow("polling started", "repo", p.repo.Name(), "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.log.Infow("polling stopped", "repo", p.repo.Name())
			return
		case <-ticker.C:
			go p.Tick(ctx)
		}
	}
}

// Tick runs one pass unless a previous one is still in flight. It reports
// whether the pass ran.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debugw("previous pass still running, skipping tick", "repo", p.repo.Name())
		return false
	}
	defer p.running.Store(false)

	passCtx, cancel := context.WithTimeout(ctx, p.passTimeout)
	defer cancel()

	if err := p.repo.ReconcileAll(passCtx); err != nil {
		p.log.Warnw("reconciliation pass failed", "repo", p.repo.Name(), "error", err)
	}
	return true
}
