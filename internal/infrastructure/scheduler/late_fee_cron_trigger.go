package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LateFeeCronTriggerConfig holds configuration for the daily late-fee trigger
type LateFeeCronTriggerConfig struct {
	// Hour and Minute are the daily run time in 24h local time
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// ParseDailyCron parses a five-field cron expression of the form "M H * * *"
// into a trigger config. Only daily schedules are supported; any day, month
// or weekday restriction is rejected.
func ParseDailyCron(spec string) (LateFeeCronTriggerConfig, error) {
	cfg := LateFeeCronTriggerConfig{CheckInterval: time.Minute}

	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return cfg, fmt.Errorf("%w: %q must have 5 fields", ErrInvalidCronSpec, spec)
	}
	if fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return cfg, fmt.Errorf("%w: %q only daily schedules are supported", ErrInvalidCronSpec, spec)
	}

	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return cfg, fmt.Errorf("%w: %q has an invalid minute field", ErrInvalidCronSpec, spec)
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return cfg, fmt.Errorf("%w: %q has an invalid hour field", ErrInvalidCronSpec, spec)
	}

	cfg.Minute = minute
	cfg.Hour = hour
	return cfg, nil
}

// LateFeeCronTrigger queues a late-fee sweep for every active school once a
// day at the configured time.
type LateFeeCronTrigger struct {
	config    LateFeeCronTriggerConfig
	scheduler *Scheduler
	schools   SchoolProvider
	logger    *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewLateFeeCronTrigger creates a new daily late-fee trigger
func NewLateFeeCronTrigger(
	config LateFeeCronTriggerConfig,
	sched *Scheduler,
	schools SchoolProvider,
	logger *zap.Logger,
) *LateFeeCronTrigger {
	return &LateFeeCronTrigger{
		config:    config,
		scheduler: sched,
		schools:   schools,
		logger:    logger,
	}
}

// Start starts the trigger loop
func (c *LateFeeCronTrigger) Start(ctx context.Context) error {
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

	c.logger.Info("Late-fee cron trigger started",
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
	)

	return nil
}

// Stop stops the trigger loop
func (c *LateFeeCronTrigger) Stop(ctx context.Context) error {
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
		c.logger.Info("Late-fee cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically if it's time to run the daily sweep
func (c *LateFeeCronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	interval := c.config.CheckInterval
	if interval == 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires the sweep once per day at the configured time
func (c *LateFeeCronTrigger) checkAndTrigger(ctx context.Context) {
	now := time.Now()
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	alreadyRan := c.lastRunDate == currentDate
	c.mu.Unlock()
	if alreadyRan {
		return
	}

	if now.Hour() != c.config.Hour || now.Minute() != c.config.Minute {
		return
	}

	c.mu.Lock()
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering daily late-fee sweep")
	c.triggerSweeps(ctx)
}

// triggerSweeps queues one sweep job per active school
func (c *LateFeeCronTrigger) triggerSweeps(ctx context.Context) {
	schoolIDs, err := c.schools.GetActiveSchoolIDs(ctx)
	if err != nil {
		c.logger.Error("Failed to list schools for late-fee sweep", zap.Error(err))
		return
	}

	c.logger.Info("Scheduling late-fee sweeps",
		zap.Int("school_count", len(schoolIDs)),
	)

	for _, schoolID := range schoolIDs {
		if err := c.scheduler.ScheduleLateFeeSweep(schoolID); err != nil {
			c.logger.Error("Failed to schedule late-fee sweep",
				zap.String("school_id", schoolID.String()),
				zap.Error(err),
			)
		}
	}
}
