package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidJobType is returned for unknown job types
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrInvalidCronSpec is returned when the cron expression cannot be parsed
	ErrInvalidCronSpec = errors.New("invalid cron expression")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
