package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Interval asks for a job of Kind every Every
type Interval struct {
	Kind  JobKind
	Every time.Duration
}

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	Intervals []Interval

	// CheckInterval is how often due intervals are looked for
	CheckInterval time.Duration
}

// IntervalTrigger submits maintenance jobs to a Scheduler when they fall due.
// A kind is first due one full interval after Start.
type IntervalTrigger struct {
	config    IntervalTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	lastRun map[JobKind]time.Time
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(config IntervalTriggerConfig, scheduler *Scheduler, logger *zap.Logger) *IntervalTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger.Named("interval-trigger"),
		now:       time.Now,
		lastRun:   make(map[JobKind]time.Time),
	}
}

// Run checks for due jobs until ctx is cancelled. It returns nil on cancellation.
func (t *IntervalTrigger) Run(ctx context.Context) error {
	start := t.now()
	t.mu.Lock()
	for _, iv := range t.config.Intervals {
		if _, ok := t.lastRun[iv.Kind]; !ok {
			t.lastRun[iv.Kind] = start
		}
	}
	t.mu.Unlock()

	t.logger.Info("interval trigger started",
		zap.Int("intervals", len(t.config.Intervals)),
		zap.Duration("check_interval", t.config.CheckInterval),
	)

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Tick submits every interval whose period has elapsed and returns how many were submitted
func (t *IntervalTrigger) Tick() int {
	now := t.now()
	submitted := 0
	for _, iv := range t.config.Intervals {
		if iv.Every <= 0 {
			continue
		}
		t.mu.Lock()
		last, seen := t.lastRun[iv.Kind]
		due := !seen || now.Sub(last) >= iv.Every
		t.mu.Unlock()
		if !due {
			continue
		}
		if _, err := t.scheduler.Submit(iv.Kind); err != nil {
			t.logger.Warn("failed to submit maintenance job",
				zap.String("kind", string(iv.Kind)),
				zap.Error(err),
			)
			continue
		}
		t.mu.Lock()
		t.lastRun[iv.Kind] = now
		t.mu.Unlock()
		submitted++
	}
	return submitted
}

// TriggerNow submits a job immediately and restarts its interval
func (t *IntervalTrigger) TriggerNow(kind JobKind) (*Job, error) {
	job, err := t.scheduler.Submit(kind)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.lastRun[kind] = t.now()
	t.mu.Unlock()
	return job, nil
}
