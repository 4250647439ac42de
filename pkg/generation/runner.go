package generation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when the in-memory job queue has no
// room. The caller decides whether that is fatal; for generation it just
// means the client retries on the next poll.
var ErrQueueFull = errors.New("job queue is full")

// Job is one unit of background work keyed by the session that asked for it.
type Job interface {
	SessionID() string
	Execute(ctx context.Context) error
}

// RunnerConfig holds worker pool configuration.
type RunnerConfig struct {
	WorkerCount int
	QueueSize   int

	// JobTimeout bounds a single job execution. External AI calls can run
	// for minutes, so this defaults high.
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
		JobTimeout:  200 * time.Second,
	}
}

// Runner manages background job processing on a fixed worker pool.
type Runner struct {
	jobChan    chan Job
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(job Job, err error)
}

// NewRunner creates a Runner. Workers do not start until Start is called.
func NewRunner(config RunnerConfig, logger *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultRunnerConfig().WorkerCount
	}

	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}

	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultRunnerConfig().JobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		jobChan:    make(chan Job, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(job Job, err error) {
			logger.Error("background job failed",
				"session_id", job.SessionID(),
				"error", err)
		},
	}
}

// SetErrorHandler installs a custom handler for failed jobs.
func (r *Runner) SetErrorHandler(handler func(job Job, err error)) {
	r.errHandler = handler
}

// Submit enqueues a job without blocking.
func (r *Runner) Submit(job Job) error {
	select {
	case r.jobChan <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker goroutines.
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop cancels in-flight jobs and waits for the workers to exit.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting generation worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping generation worker", "worker_id", id)

			return

		case job, ok := <-r.jobChan:
			if !ok {
				return
			}

			r.processJob(job, id)
		}
	}
}

func (r *Runner) processJob(job Job, workerID int) {
	logger := r.logger.With(
		"session_id", job.SessionID(),
		"worker_id", workerID,
	)

	ctx, cancel := context.WithTimeout(r.ctx, r.config.JobTimeout)
	defer cancel()

	logger.Info("processing generation job")

	err := job.Execute(ctx)
	if err != nil {
		logger.Error("generation job failed", "error", err)
		r.errHandler(job, err)

		return
	}

	logger.Info("generation job completed")
}
