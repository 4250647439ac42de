package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/otelhelper"
)

// PollStatus is the client-facing state of a generation session.
type PollStatus string

const (
	PollStatusGenerating PollStatus = "generating"
	PollStatusCompleted  PollStatus = "completed"
	PollStatusFailed     PollStatus = "failed"
)

// PollResponse is what a polling client gets back. Progress and Step are
// synthesized for UX feedback only and carry no operational meaning.
type PollResponse struct {
	Status        PollStatus                   `json:"status"`
	Progress      int                          `json:"progress"`
	Step          int                          `json:"step"`
	Tasks         []models.GeneratedTask       `json:"tasks,omitempty"`
	Dependencies  []models.GeneratedDependency `json:"dependencies,omitempty"`
	Metadata      models.GenerationSummary     `json:"metadata"`
	UsingFallback bool                         `json:"using_fallback"`
	Error         string                       `json:"error,omitempty"`
}

// Coordinator dispatches background generation jobs and answers polls.
// Dispatch is claimed atomically per session, the job result lands in the
// store, and the first poll that sees it consumes it.
type Coordinator struct {
	store  Store
	engine Engine
	runner *Runner
	tracer trace.Tracer
	logger *slog.Logger

	// jobDuration is the nominal duration used to synthesize progress
	// while a job runs. It matches the runner's job timeout.
	jobDuration time.Duration
}

// NewCoordinator creates a generation coordinator on top of a started
// runner.
func NewCoordinator(store Store, engine Engine, runner *Runner, tracer trace.Tracer, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:       store,
		engine:      engine,
		runner:      runner,
		tracer:      tracer,
		logger:      logger,
		jobDuration: runner.config.JobTimeout,
	}
}

// Start claims the session and enqueues a generation job. The loser of a
// concurrent claim is a silent no-op returning false; exactly one job runs
// per session until its record is consumed or expires.
func (c *Coordinator) Start(ctx context.Context, sessionID string, req Request) (bool, error) {
	claimed, err := c.store.ClaimStarted(ctx, sessionID)
	if err != nil {
		return false, err
	}

	if !claimed {
		return false, nil
	}

	job := &generationJob{
		sessionID: sessionID,
		req:       req,
		engine:    c.engine,
		store:     c.store,
		tracer:    c.tracer,
		logger:    c.logger,
	}

	err = c.runner.Submit(job)
	if err != nil {
		// The claim is held but no job will run. Write a failed record so
		// the next poll falls back instead of spinning until the TTL.
		putErr := c.store.PutRecord(ctx, sessionID, &models.GenerationRecord{
			Status: models.GenerationFailed,
			Error:  err.Error(),
		})
		if putErr != nil {
			c.logger.ErrorContext(ctx, "failed to record generation dispatch failure",
				"session_id", sessionID,
				"error", putErr)
		}

		return false, fmt.Errorf("failed to dispatch generation job: %w", err)
	}

	c.logger.InfoContext(ctx, "generation job dispatched",
		"session_id", sessionID,
		"project_id", req.ProjectID)

	return true, nil
}

// Poll reports the session state. A session that was never started is
// started here; a finished session's record is consumed exactly once, with
// the fallback plan substituted when the job failed.
func (c *Coordinator) Poll(ctx context.Context, sessionID string, req Request) (*PollResponse, error) {
	record, err := c.store.ConsumeRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if record != nil {
		return c.resolve(ctx, sessionID, record), nil
	}

	startedAt, err := c.store.StartedAt(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if startedAt == nil {
		_, err = c.Start(ctx, sessionID, req)
		if err != nil {
			return nil, err
		}

		return &PollResponse{Status: PollStatusGenerating, Progress: 5, Step: 1}, nil
	}

	progress := c.syntheticProgress(*startedAt)

	return &PollResponse{
		Status:   PollStatusGenerating,
		Progress: progress,
		Step:     1 + progress/25,
	}, nil
}

func (c *Coordinator) resolve(ctx context.Context, sessionID string, record *models.GenerationRecord) *PollResponse {
	if record.Status == models.GenerationCompleted {
		c.logger.InfoContext(ctx, "generation result consumed",
			"session_id", sessionID,
			"tasks", len(record.Tasks))

		return &PollResponse{
			Status:       PollStatusCompleted,
			Progress:     100,
			Step:         5,
			Tasks:        record.Tasks,
			Dependencies: record.Dependencies,
			Metadata:     record.Metadata,
		}
	}

	fallback := FallbackResult()

	c.logger.WarnContext(ctx, "generation failed, substituting fallback plan",
		"session_id", sessionID,
		"error", record.Error)

	return &PollResponse{
		Status:        PollStatusFailed,
		Progress:      100,
		Step:          5,
		Tasks:         fallback.Tasks,
		Dependencies:  fallback.Dependencies,
		Metadata:      fallback.Metadata,
		UsingFallback: true,
		Error:         record.Error,
	}
}

// syntheticProgress maps elapsed time onto a 5..95 range. It only moves
// forward between polls and never claims completion.
func (c *Coordinator) syntheticProgress(startedAt time.Time) int {
	elapsed := time.Since(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	progress := 5 + int(float64(elapsed)/float64(c.jobDuration)*90)
	if progress > 95 {
		progress = 95
	}

	return progress
}

// generationJob runs one engine call and writes the terminal record.
type generationJob struct {
	sessionID string
	req       Request
	engine    Engine
	store     Store
	tracer    trace.Tracer
	logger    *slog.Logger
}

func (j *generationJob) SessionID() string {
	return j.sessionID
}

// Execute calls the engine and stores either a completed record (validated
// result) or a failed one. The error is also returned so the runner's
// failure path records the job as failed independently of the cache.
func (j *generationJob) Execute(ctx context.Context) error {
	ctx, span := otelhelper.StartSpan(ctx, j.tracer, "generation.job",
		attribute.String(otelhelper.SessionIDKey, j.sessionID),
		attribute.String(otelhelper.ProjectIDKey, j.req.ProjectID),
	)
	defer span.End()

	result, err := j.engine.Generate(ctx, j.req)
	if err == nil {
		err = ValidateResult(result)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		putErr := j.store.PutRecord(ctx, j.sessionID, &models.GenerationRecord{
			Status: models.GenerationFailed,
			Error:  err.Error(),
		})
		if putErr != nil {
			j.logger.ErrorContext(ctx, "failed to store failed generation record",
				"session_id", j.sessionID,
				"error", putErr)
		}

		return err
	}

	return j.store.PutRecord(ctx, j.sessionID, &models.GenerationRecord{
		Status:       models.GenerationCompleted,
		Tasks:        result.Tasks,
		Dependencies: result.Dependencies,
		Metadata:     result.Metadata,
	})
}
