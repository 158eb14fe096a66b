package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobType represents the kind of background work a job carries
type JobType string

const (
	// JobTypeLateFeeSweep applies the late-fine policy to overdue fee records
	JobTypeLateFeeSweep JobType = "LATE_FEE_SWEEP"
	// JobTypeReconciliation aligns local transactions with the gateway ledger
	JobTypeReconciliation JobType = "RECONCILIATION"
)

// IsValid returns true if the job type is known
func (t JobType) IsValid() bool {
	return t == JobTypeLateFeeSweep || t == JobTypeReconciliation
}

// Job represents one unit of scheduled background work for a school
type Job struct {
	ID       uuid.UUID
	SchoolID uuid.UUID
	Type     JobType
	// WindowStart and WindowEnd bound the data the job looks at.
	// Reconciliation uses both; the sweep only reads WindowEnd as its run time.
	WindowStart time.Time
	WindowEnd   time.Time
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a new job instance
func NewJob(schoolID uuid.UUID, jobType JobType, windowStart, windowEnd time.Time, maxRetries int) *Job {
	return &Job{
		ID:          uuid.New(),
		SchoolID:    schoolID,
		Type:        jobType,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Status:      JobStatusPending,
		MaxRetries:  maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// JobExecutor is the interface for executing scheduled jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// SchoolProvider enumerates the schools background jobs should run for
type SchoolProvider interface {
	GetActiveSchoolIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Config holds scheduler configuration
type Config struct {
	Enabled           bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		MaxConcurrentJobs: 3,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Minute,
	}
}

// Scheduler runs fee background jobs on a bounded worker pool
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, 100),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Fee scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler. The queue is closed so workers can
// drain what was already submitted; in-flight jobs are cut off only when
// the context expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Info("Fee scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Warn("Fee scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob submits a job for execution
func (s *Scheduler) SubmitJob(job *Job) error {
	if !job.Type.IsValid() {
		return ErrInvalidJobType
	}
	return s.enqueue(job)
}

// enqueue places a job on the queue. The running check and the send happen
// under the same lock that Stop holds while closing the queue, so a send
// can never hit a closed channel.
func (s *Scheduler) enqueue(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Job queued",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.String("school_id", job.SchoolID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				s.logger.Debug("Job channel closed", zap.Int("worker_id", workerID))
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	// Not ready yet (retry backoff), put it back on the queue
	if job.NextRetryAt != nil && time.Now().Before(*job.NextRetryAt) {
		if err := s.enqueue(job); err != nil {
			s.logger.Warn("Dropping job waiting for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
		return
	}

	job.Start()
	s.logger.Info("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("school_id", job.SchoolID.String()),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	err := s.executor.Execute(jobCtx, job)
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Error(err),
		)

		if job.ShouldRetry() {
			job.ScheduleRetry(s.config.RetryDelay)
			// A shutdown between the failure and the re-queue drops the
			// retry; the next trigger run resubmits the work.
			if qErr := s.enqueue(job); qErr != nil {
				s.logger.Warn("Dropping job retry",
					zap.String("job_id", job.ID.String()),
					zap.Error(qErr),
				)
				return
			}
			s.logger.Info("Job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
			)
		}
		return
	}

	job.Complete()
	s.logger.Info("Job completed successfully",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
	)
}

// ScheduleLateFeeSweep queues a late-fee sweep for one school as of now
func (s *Scheduler) ScheduleLateFeeSweep(schoolID uuid.UUID) error {
	now := time.Now()
	job := NewJob(schoolID, JobTypeLateFeeSweep, now, now, s.config.RetryAttempts)
	return s.SubmitJob(job)
}

// ScheduleReconciliation queues a reconciliation run for one school's window
func (s *Scheduler) ScheduleReconciliation(schoolID uuid.UUID, from, to time.Time) error {
	job := NewJob(schoolID, JobTypeReconciliation, from, to, s.config.RetryAttempts)
	return s.SubmitJob(job)
}
