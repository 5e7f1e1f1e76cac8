// Package scheduler drives the background jobs: archival, snapshots,
// cache sweeps, and retention cleanup. Jobs run on independent
// intervals, decoupled from the foreground request path; they share
// only the store handles and rely on the stores' atomicity guarantees.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one background job pass. It must honor ctx cancellation
// between bounded units of work.
type JobFunc func(ctx context.Context) error

// job tracks a registered background job and its run bookkeeping.
type job struct {
	name     string
	interval time.Duration
	fn       JobFunc

	lastRun  time.Time
	runs     int64
	failures int64
}

// TickerConfig contains configuration for the scheduler ticker.
type TickerConfig struct {
	Interval time.Duration // How often to check for due jobs (default: 1 second)
}

// DefaultTickerConfig returns sensible defaults.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval: 1 * time.Second,
	}
}

// Ticker checks registered jobs at a fixed cadence and runs those
// whose interval has elapsed. Job errors are logged, never fatal: a
// failed pass retries on its next interval.
type Ticker struct {
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.SugaredLogger

	mu              sync.Mutex
	jobs            []*job
	lastTickAt      time.Time
	ticksSinceStart int64
}

// NewTicker creates a scheduler ticker.
func NewTicker(cfg TickerConfig, logger *zap.SugaredLogger) *Ticker {
	return NewTickerWithContext(context.Background(), cfg, logger)
}

// NewTickerWithContext creates a ticker with a parent context.
func NewTickerWithContext(ctx context.Context, cfg TickerConfig, logger *zap.SugaredLogger) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}
	tickerCtx, cancel := context.WithCancel(ctx)
	return &Ticker{
		interval: cfg.Interval,
		ctx:      tickerCtx,
		cancel:   cancel,
		logger:   logger,
	}
}

// AddJob registers a background job. Call before Start.
func (t *Ticker) AddJob(name string, interval time.Duration, fn JobFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = append(t.jobs, &job{name: name, interval: interval, fn: fn})
}

// Start begins the ticker loop.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.logger.Infow("Scheduler started", "interval", t.interval, "jobs", len(t.jobs))
}

// Stop gracefully stops the ticker: the in-flight job pass observes
// ctx cancellation and finishes its current unit of work.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.logger.Infow("Scheduler stopped")
}

// run is the main ticker loop.
func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.mu.Lock()
			t.lastTickAt = tickTime
			t.ticksSinceStart++
			due := t.dueJobsLocked(tickTime)
			t.mu.Unlock()

			for _, j := range due {
				t.runJob(j, tickTime)
				select {
				case <-t.ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// dueJobsLocked returns jobs whose interval has elapsed since their
// last run. Caller holds t.mu.
func (t *Ticker) dueJobsLocked(now time.Time) []*job {
	var due []*job
	for _, j := range t.jobs {
		if j.lastRun.IsZero() || now.Sub(j.lastRun) >= j.interval {
			due = append(due, j)
		}
	}
	return due
}

// runJob executes one job pass and records the outcome.
func (t *Ticker) runJob(j *job, now time.Time) {
	start := time.Now()
	err := j.fn(t.ctx)
	duration := time.Since(start)

	t.mu.Lock()
	j.lastRun = now
	j.runs++
	if err != nil {
		j.failures++
	}
	t.mu.Unlock()

	if err != nil {
		if t.ctx.Err() != nil {
			// Shutdown interrupted the pass; not a failure worth alarming on.
			t.logger.Debugw("Job interrupted by shutdown", "job", j.name)
			return
		}
		t.logger.Errorw("Background job failed",
			"job", j.name,
			"duration", duration,
			"error", err,
		)
		return
	}

	t.logger.Debugw("Background job complete",
		"job", j.name,
		"duration", duration,
	)
}

// JobStats reports one job's bookkeeping.
type JobStats struct {
	Name     string
	Interval time.Duration
	LastRun  time.Time
	Runs     int64
	Failures int64
}

// Stats returns ticker and per-job statistics.
func (t *Ticker) Stats() (lastTickAt time.Time, ticks int64, jobs []JobStats) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, j := range t.jobs {
		jobs = append(jobs, JobStats{
			Name:     j.name,
			Interval: j.interval,
			LastRun:  j.lastRun,
			Runs:     j.runs,
			Failures: j.failures,
		})
	}
	return t.lastTickAt, t.ticksSinceStart, jobs
}
