package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1001stories/stories-api/internal/metrics"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/google/uuid"
)

// Config holds timing for the queue's workers and stale-job monitor.
type Config struct {
	// PollInterval is how often an idle worker looks for work it was not woken for.
	PollInterval time.Duration

	// StaleJobAge is how long a job may stay active without an update before
	// it is returned to waiting.
	StaleJobAge time.Duration

	// StaleCheckInterval is how often the stale-job monitor runs.
	StaleCheckInterval time.Duration

	// JobTimeout bounds a single handler run.
	JobTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:       5 * time.Second,
		StaleJobAge:        30 * time.Minute,
		StaleCheckInterval: 5 * time.Minute,
		JobTimeout:         5 * time.Minute,
	}
}

type registration struct {
	handler Handler
	workers int
	wake    chan struct{}
}

// Queue dispatches persisted jobs to registered handlers. Register every job
// type before calling Start.
type Queue struct {
	store  Store
	config Config
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]*registration
	started  bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a Queue backed by store. Zero config durations fall back
// to DefaultConfig values.
func NewQueue(store Store, config Config, logger *slog.Logger) *Queue {
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.StaleJobAge <= 0 {
		config.StaleJobAge = defaults.StaleJobAge
	}
	if config.StaleCheckInterval <= 0 {
		config.StaleCheckInterval = defaults.StaleCheckInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		store:    store,
		config:   config,
		logger:   logger.With(slog.String("component", "job_queue")),
		handlers: make(map[string]*registration),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register installs the handler for jobType served by workers goroutines.
// It panics if called after Start.
func (q *Queue) Register(jobType string, workers int, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		panic(fmt.Sprintf("task: Register(%q) called after Start", jobType))
	}
	if workers <= 0 {
		q.logger.Warn("invalid worker count specified, using default",
			slog.String("job_type", jobType),
			slog.Int("specified_count", workers),
			slog.Int("default_count", 1))
		workers = 1
	}

	q.handlers[jobType] = &registration{
		handler: handler,
		workers: workers,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue persists a waiting job and returns its ID. payload is encoded as
// JSON. Lower priority values are served first.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, priority int) (uuid.UUID, error) {
	q.mu.RLock()
	reg, ok := q.handlers[jobType]
	closed := q.closed
	q.mu.RUnlock()

	if closed {
		return uuid.Nil, ErrQueueClosed
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode %s payload: %w", jobType, err)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Type:      jobType,
		Payload:   raw,
		Priority:  priority,
		State:     StateWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.store.Insert(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save job: %w", err)
	}

	metrics.JobEnqueued(jobType)
	logger.FromContextOrDefault(ctx, q.logger).Debug("job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", jobType),
		slog.Int("priority", priority))

	// Non-blocking: an already pending wake-up covers this job too.
	select {
	case reg.wake <- struct{}{}:
	default:
	}

	return job.ID, nil
}

// GetStatus returns the current status of a job.
func (q *Queue) GetStatus(ctx context.Context, id uuid.UUID) (Status, error) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	return job.Status(), nil
}

// Stats returns job counts keyed by type then state.
func (q *Queue) Stats(ctx context.Context) (map[string]map[State]int, error) {
	return q.store.CountByState(ctx)
}

// Start requeues stale jobs left over from a previous run, then launches the
// worker pools and the stale-job monitor.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.started = true
	q.mu.Unlock()

	if err := q.requeueStale(ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	for jobType, reg := range q.handlers {
		for i := 0; i < reg.workers; i++ {
			q.wg.Add(1)
			go q.worker(jobType, i, reg)
		}
		q.logger.Info("started job workers",
			slog.String("job_type", jobType),
			slog.Int("workers", reg.workers))
	}

	q.wg.Add(1)
	go q.staleJobMonitor()

	return nil
}

// Stop rejects new jobs, signals workers to exit and waits for in-flight
// handlers to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	q.logger.Info("job queue stopped")
}

func (q *Queue) worker(jobType string, id int, reg *registration) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		for q.ctx.Err() == nil {
			job, err := q.store.ClaimNext(q.ctx, jobType)
			if err != nil {
				if q.ctx.Err() == nil {
					q.logger.Error("failed to claim job",
						slog.String("job_type", jobType),
						slog.Int("worker_id", id),
						slog.String("error", err.Error()))
				}
				break
			}
			if job == nil {
				break
			}
			q.runJob(job, id, reg.handler)
		}

		select {
		case <-q.ctx.Done():
			return
		case <-reg.wake:
		case <-ticker.C:
		}
	}
}

// runJob executes one claimed job. The handler context is detached from
// queue shutdown so Stop lets in-flight jobs finish within JobTimeout.
func (q *Queue) runJob(job *Job, workerID int, handler Handler) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(q.ctx), q.config.JobTimeout)
	defer cancel()

	log := q.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.Int("worker_id", workerID),
		slog.Int("attempt", job.Attempts),
	)
	ctx = logger.WithLogger(ctx, log)

	progress := func(percent int) {
		percent = min(max(percent, 0), 100)
		if err := q.store.UpdateProgress(ctx, job.ID, percent); err != nil {
			log.Warn("failed to update job progress", slog.String("error", err.Error()))
		}
	}

	log.Info("processing job")
	start := time.Now()
	result, err := invoke(ctx, job, handler, progress)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("job failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed))
		if ferr := q.store.Fail(ctx, job.ID, err.Error()); ferr != nil {
			log.Error("failed to mark job failed", slog.String("error", ferr.Error()))
		}
		metrics.JobFinished(job.Type, string(StateFailed), elapsed)
		return
	}

	if cerr := q.store.Complete(ctx, job.ID, result); cerr != nil {
		log.Error("failed to mark job completed", slog.String("error", cerr.Error()))
		return
	}
	metrics.JobFinished(job.Type, string(StateCompleted), elapsed)
	log.Info("job completed", slog.Duration("duration", elapsed))
}

func invoke(ctx context.Context, job *Job, handler Handler, progress ProgressFunc) (result json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job handler panicked: %v", p)
		}
	}()
	return handler(ctx, job, progress)
}

func (q *Queue) staleJobMonitor() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			if err := q.requeueStale(q.ctx); err != nil && q.ctx.Err() == nil {
				q.logger.Error("failed to requeue stale jobs", slog.String("error", err.Error()))
			}
		}
	}
}

func (q *Queue) requeueStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-q.config.StaleJobAge)
	n, err := q.store.RequeueStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	metrics.JobsRequeued(n)
	q.logger.Warn("requeued stale jobs",
		slog.Int64("count", n),
		slog.Time("cutoff", cutoff))

	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, reg := range q.handlers {
		select {
		case reg.wake <- struct{}{}:
		default:
		}
	}
	return nil
}
