package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconcileTriggerConfig holds configuration for the periodic reconciliation trigger
type ReconcileTriggerConfig struct {
	// Interval is how often a reconciliation run is queued
	Interval time.Duration
	// Lookback is how far back each run's gateway query window reaches.
	// It should exceed the interval so consecutive windows overlap; replayed
	// payments are absorbed by the terminal-state checks.
	Lookback time.Duration
}

// ReconcileTrigger queues a reconciliation run for every active school at a
// fixed interval.
type ReconcileTrigger struct {
	config    ReconcileTriggerConfig
	scheduler *Scheduler
	schools   SchoolProvider
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewReconcileTrigger creates a new periodic reconciliation trigger
func NewReconcileTrigger(
	config ReconcileTriggerConfig,
	sched *Scheduler,
	schools SchoolProvider,
	logger *zap.Logger,
) *ReconcileTrigger {
	return &ReconcileTrigger{
		config:    config,
		scheduler: sched,
		schools:   schools,
		logger:    logger,
	}
}

// Start starts the trigger loop
func (c *ReconcileTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Reconciliation trigger started",
		zap.Duration("interval", c.config.Interval),
		zap.Duration("lookback", c.config.Lookback),
	)

	return nil
}

// Stop stops the trigger loop
func (c *ReconcileTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Reconciliation trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop queues reconciliation runs at the configured interval
func (c *ReconcileTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.triggerRuns(ctx)
		}
	}
}

// triggerRuns queues one reconciliation job per active school
func (c *ReconcileTrigger) triggerRuns(ctx context.Context) {
	schoolIDs, err := c.schools.GetActiveSchoolIDs(ctx)
	if err != nil {
		c.logger.Error("Failed to list schools for reconciliation", zap.Error(err))
		return
	}

	now := time.Now()
	from := now.Add(-c.config.Lookback)

	for _, schoolID := range schoolIDs {
		if err := c.scheduler.ScheduleReconciliation(schoolID, from, now); err != nil {
			c.logger.Error("Failed to schedule reconciliation",
				zap.String("school_id", schoolID.String()),
				zap.Error(err),
			)
		}
	}
}
