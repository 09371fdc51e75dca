// Package worker claims jobs from the store and runs them through
// typed executors. Claiming is database-atomic; the RabbitMQ notice
// bus only wakes idle workers early, it never carries the job itself.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/shared/rabbitmq"
)

// Config holds worker configuration.
type Config struct {
	Logger   *slog.Logger
	Store    Storage
	Bus      *rabbitmq.Client
	Registry *Registry

	Concurrency      int
	PollInterval     time.Duration
	JobTimeout       time.Duration
	HeartbeatEvery   time.Duration
	RetryBackoffBase time.Duration
	RetryBackoffCap  time.Duration

	// ProcessingLease reclaims processing jobs whose heartbeat went
	// quiet for this long. Zero disables reclaim.
	ProcessingLease time.Duration
	PrefetchCount   int
}

// Worker is the background job processor.
type Worker struct {
	logger   *slog.Logger
	store    Storage
	bus      *rabbitmq.Client
	registry *Registry

	workerID         string
	concurrency      int
	pollInterval     time.Duration
	jobTimeout       time.Duration
	heartbeatEvery   time.Duration
	retryBackoffBase time.Duration
	retryBackoffCap  time.Duration
	processingLease  time.Duration
	prefetchCount    int

	wg       sync.WaitGroup
	stopChan chan struct{}
	wakeChan chan struct{}
}

// NewWorker creates a worker instance.
func NewWorker(cfg *Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	heartbeat := cfg.HeartbeatEvery
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	backoffBase := cfg.RetryBackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Minute
	}
	backoffCap := cfg.RetryBackoffCap
	if backoffCap <= 0 {
		backoffCap = time.Hour
	}

	return &Worker{
		logger:           cfg.Logger,
		store:            cfg.Store,
		bus:              cfg.Bus,
		registry:         cfg.Registry,
		workerID:         fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		concurrency:      cfg.Concurrency,
		pollInterval:     pollInterval,
		jobTimeout:       cfg.JobTimeout,
		heartbeatEvery:   heartbeat,
		retryBackoffBase: backoffBase,
		retryBackoffCap:  backoffCap,
		processingLease:  cfg.ProcessingLease,
		prefetchCount:    cfg.PrefetchCount,
		stopChan:         make(chan struct{}),
		wakeChan:         make(chan struct{}, 1),
	}
}

// Start runs the worker pool until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	if w.bus != nil {
		if err := w.startNoticeListener(ctx); err != nil {
			// Polling still drives progress without the bus.
			w.logger.Warn("Job notice listener unavailable, relying on polling",
				slog.Any("error", err),
			)
		}
	}

	if w.processingLease > 0 {
		w.wg.Add(1)
		go w.reaperLoop(ctx)
	}

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	<-ctx.Done()
	w.logger.Info("Worker context cancelled, stopping")
	return nil
}

// Stop gracefully stops the worker and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", slog.String("worker_id", w.workerID))
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
}

// workerLoop drains claimable jobs, then waits for a poll tick or a
// bus nudge.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started", slog.String("worker_name", workerName))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping", slog.String("worker_name", workerName))
			return
		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context cancelled", slog.String("worker_name", workerName))
			return
		default:
		}

		if w.processNext(ctx, workerName) {
			continue
		}

		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wakeChan:
		}
	}
}

// startNoticeListener consumes job notices and nudges idle workers. A
// notice is acked immediately: it carries no work, the claim query
// decides what actually runs.
func (w *Worker) startNoticeListener(ctx context.Context) error {
	deliveries, err := w.bus.Consume(w.workerID, w.prefetchCount)
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		for {
			select {
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					w.logger.Warn("Job notice channel closed, relying on polling")
					return
				}

				var notice rabbitmq.JobNotice
				if err := json.Unmarshal(delivery.Body, &notice); err != nil {
					w.logger.Warn("Malformed job notice",
						slog.Any("error", err),
					)
				} else {
					w.logger.Debug("Job notice received",
						slog.String("job_id", notice.JobID),
						slog.String("job_type", notice.JobType),
					)
				}
				if err := delivery.Ack(false); err != nil {
					w.logger.Warn("Failed to ack job notice", slog.Any("error", err))
				}

				select {
				case w.wakeChan <- struct{}{}:
				default:
				}
			}
		}
	}()
	return nil
}

// reaperLoop periodically returns stale processing jobs to pending.
func (w *Worker) reaperLoop(ctx context.Context) {
	defer w.wg.Done()

	interval := w.processingLease / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.store.ReapStaleJobs(ctx, w.processingLease); err != nil {
				w.logger.Error("Failed to reap stale jobs", slog.Any("error", err))
			}
		}
	}
}
