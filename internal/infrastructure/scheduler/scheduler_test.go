package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingExecutor collects executed jobs for assertions
type recordingExecutor struct {
	mu   sync.Mutex
	jobs []*Job
	err  error
}

func (e *recordingExecutor) Execute(ctx context.Context, job *Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, job)
	return e.err
}

func (e *recordingExecutor) executed() []*Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Job(nil), e.jobs...)
}

func TestParseDailyCron(t *testing.T) {
	tests := []struct {
		name         string
		spec         string
		expectedHour int
		expectedMin  int
		wantErr      bool
	}{
		{
			name:         "Default 2am",
			spec:         "0 2 * * *",
			expectedHour: 2,
			expectedMin:  0,
		},
		{
			name:         "3:30am",
			spec:         "30 3 * * *",
			expectedHour: 3,
			expectedMin:  30,
		},
		{
			name:         "Midnight",
			spec:         "0 0 * * *",
			expectedHour: 0,
			expectedMin:  0,
		},
		{
			name:         "Extra whitespace",
			spec:         "  15   4   *   *   *  ",
			expectedHour: 4,
			expectedMin:  15,
		},
		{
			name:    "Too few fields",
			spec:    "0 2 *",
			wantErr: true,
		},
		{
			name:    "Day restriction not supported",
			spec:    "0 2 1 * *",
			wantErr: true,
		},
		{
			name:    "Minute out of range",
			spec:    "61 2 * * *",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseDailyCron(tt.spec)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCronSpec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHour, cfg.Hour)
			assert.Equal(t, tt.expectedMin, cfg.Minute)
		})
	}
}

func TestScheduler_SubmitJob(t *testing.T) {
	t.Run("rejects jobs while stopped", func(t *testing.T) {
		s := NewScheduler(DefaultConfig(), &recordingExecutor{}, zap.NewNop())

		err := s.SubmitJob(NewJob(uuid.New(), JobTypeLateFeeSweep, time.Now(), time.Now(), 0))
		assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	})

	t.Run("rejects unknown job types", func(t *testing.T) {
		s := NewScheduler(DefaultConfig(), &recordingExecutor{}, zap.NewNop())
		require.NoError(t, s.Start(context.Background()))
		defer s.Stop(context.Background())

		err := s.SubmitJob(NewJob(uuid.New(), JobType("NIGHTLY_BACKUP"), time.Now(), time.Now(), 0))
		assert.ErrorIs(t, err, ErrInvalidJobType)
	})

	t.Run("executes submitted jobs", func(t *testing.T) {
		executor := &recordingExecutor{}
		s := NewScheduler(DefaultConfig(), executor, zap.NewNop())
		require.NoError(t, s.Start(context.Background()))

		schoolID := uuid.New()
		require.NoError(t, s.ScheduleLateFeeSweep(schoolID))
		require.NoError(t, s.ScheduleReconciliation(schoolID, time.Now().Add(-time.Hour), time.Now()))

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))

		jobs := executor.executed()
		require.Len(t, jobs, 2)
		types := map[JobType]bool{}
		for _, job := range jobs {
			types[job.Type] = true
			assert.Equal(t, schoolID, job.SchoolID)
			assert.Equal(t, JobStatusSuccess, job.Status)
		}
		assert.True(t, types[JobTypeLateFeeSweep])
		assert.True(t, types[JobTypeReconciliation])
	})
}

// gatedExecutor fails every job, but only after the test releases it
type gatedExecutor struct {
	started chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (e *gatedExecutor) Execute(ctx context.Context, job *Job) error {
	e.once.Do(func() { close(e.started) })
	<-e.gate
	return context.DeadlineExceeded
}

func TestScheduler_StopDuringRetry(t *testing.T) {
	executor := &gatedExecutor{
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	cfg := DefaultConfig()
	cfg.MaxConcurrentJobs = 1
	cfg.RetryDelay = time.Millisecond
	s := NewScheduler(cfg, executor, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.SubmitJob(NewJob(uuid.New(), JobTypeLateFeeSweep, time.Now(), time.Now(), 3)))
	<-executor.started

	stopErr := make(chan error, 1)
	go func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopErr <- s.Stop(stopCtx)
	}()

	// Wait until the queue is closed to new work, then let the in-flight
	// job fail. Its retry re-queue must be dropped, not panic on the
	// closed channel.
	require.Eventually(t, func() bool {
		err := s.SubmitJob(NewJob(uuid.New(), JobTypeLateFeeSweep, time.Now(), time.Now(), 0))
		return errors.Is(err, ErrSchedulerNotRunning)
	}, time.Second, time.Millisecond)
	close(executor.gate)

	require.NoError(t, <-stopErr)
}

func TestJobRetry(t *testing.T) {
	job := NewJob(uuid.New(), JobTypeReconciliation, time.Now(), time.Now(), 2)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)

	job.Fail("gateway timeout")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.True(t, job.ShouldRetry())

	job.ScheduleRetry(time.Minute)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.NotNil(t, job.NextRetryAt)

	job.Fail("gateway timeout")
	job.ScheduleRetry(time.Minute)
	job.Fail("gateway timeout")
	assert.False(t, job.ShouldRetry())
}

func TestPolicyFromConfig(t *testing.T) {
	t.Run("flat policy", func(t *testing.T) {
		policy, err := PolicyFromConfig(&config.LateFeeConfig{PolicyType: "flat", FlatAmount: "150"})
		require.NoError(t, err)
		assert.Equal(t, "150", policy.Amount.String())
	})

	t.Run("percent policy", func(t *testing.T) {
		policy, err := PolicyFromConfig(&config.LateFeeConfig{PolicyType: "percent", Percent: "2.5"})
		require.NoError(t, err)
		assert.Equal(t, "2.5", policy.Percent.String())
	})

	t.Run("rejects unparseable amounts", func(t *testing.T) {
		_, err := PolicyFromConfig(&config.LateFeeConfig{PolicyType: "flat", FlatAmount: "hundred"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects unknown policy types", func(t *testing.T) {
		_, err := PolicyFromConfig(&config.LateFeeConfig{PolicyType: "compounding"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
