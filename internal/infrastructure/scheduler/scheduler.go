package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a maintenance job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind names a ledger maintenance task
type JobKind string

const (
	// JobKindOutboxHealth reports outbox backlog and dead letters
	JobKindOutboxHealth JobKind = "OUTBOX_HEALTH"
	// JobKindDeadLetterRequeue puts dead outbox entries back into the pending set
	JobKindDeadLetterRequeue JobKind = "DEAD_LETTER_REQUEUE"
)

// AllJobKinds returns every known job kind
func AllJobKinds() []JobKind {
	return []JobKind{JobKindOutboxHealth, JobKindDeadLetterRequeue}
}

// IsValid reports whether k is a known job kind
func (k JobKind) IsValid() bool {
	for _, known := range AllJobKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Job is one execution of a maintenance task
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a new job instance
func NewJob(kind JobKind, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
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

// JobExecutor runs maintenance jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobObserver is told about every finished job, successful or not
type JobObserver func(job *Job)

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 1,
		QueueSize:         16,
		JobTimeout:        time.Minute,
		RetryAttempts:     2,
		RetryDelay:        10 * time.Second,
	}
}

// Scheduler runs maintenance jobs on a small worker pool
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	observer JobObserver
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = defaults.MaxConcurrentJobs
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger.Named("scheduler"),
		jobs:     make(chan *Job, config.QueueSize),
	}
}

// OnJobFinished registers an observer for finished jobs. Call before Start.
func (s *Scheduler) OnJobFinished(observer JobObserver) {
	s.observer = observer
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("maintenance scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the workers and waits for running jobs until ctx expires.
// Queued jobs that have not started are dropped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("maintenance scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the worker pool is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Submit queues a new job of the given kind
func (s *Scheduler) Submit(kind JobKind) (*Job, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidJobKind
	}
	job := NewJob(kind, s.config.RetryAttempts)
	if err := s.enqueue(job); err != nil {
		return nil, err
	}
	s.logger.Debug("job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
	)
	return job, nil
}

func (s *Scheduler) enqueue(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	if job.NextRetryAt != nil {
		if wait := time.Until(*job.NextRetryAt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	job.Start()
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := s.executor.Execute(jobCtx, job); err != nil {
		job.Fail(err.Error())
		s.logger.Error("job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(err),
		)
		if job.ShouldRetry() && ctx.Err() == nil {
			job.ScheduleRetry(s.config.RetryDelay)
			if err := s.enqueue(job); err != nil {
				s.logger.Warn("failed to re-queue job for retry",
					zap.String("job_id", job.ID.String()),
					zap.Error(err),
				)
				s.finish(job)
			}
			return
		}
		s.finish(job)
		return
	}

	job.Complete()
	s.logger.Debug("job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
	)
	s.finish(job)
}

func (s *Scheduler) finish(job *Job) {
	if s.observer != nil {
		s.observer(job)
	}
}
