package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Runner drives the reconciler on a ticker with an optional manual
// trigger. A single goroutine owns the loop; sync failures are logged
// and retried on the next tick, never fatal.
type Runner struct {
	reconciler *Reconciler
	logger     *slog.Logger
	interval   time.Duration

	stopOnce      sync.Once
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewRunner creates a background sync runner.
func NewRunner(reconciler *Reconciler, logger *slog.Logger, interval time.Duration) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{
		reconciler:    reconciler,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start syncs once immediately, then keeps syncing on the interval until
// Stop is called or the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.runOnce(ctx)
			case <-r.manualTrigger:
				r.logger.Info("manual sync triggered")
				r.runOnce(ctx)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the background loop. Safe to call more than once; does not
// interrupt a sync in flight.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Trigger requests an immediate sync. Non-blocking; if a trigger is
// already pending the request is dropped.
func (r *Runner) Trigger() {
	select {
	case r.manualTrigger <- struct{}{}:
	default:
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	if err := r.reconciler.Sync(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return
		}
		r.logger.Error("sync failed, will retry next interval", "error", err)
	}
}
