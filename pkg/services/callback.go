package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/projectpulse/pulse/pkg/eventbus"
	"github.com/projectpulse/pulse/pkg/events"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/orchestration"
	"github.com/projectpulse/pulse/pkg/persistence"
)

// TaskStatusUpdateRequest is the payload of a runner status notification for
// a single task.
type TaskStatusUpdateRequest struct {
	Status      models.RunnerStatus `json:"status"       validate:"required,oneof=assigned in_progress completed failed"`
	ExecutionID string              `json:"execution_id" validate:"required"`
	Progress    *int                `json:"progress,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// CallbackRequest is the payload the workflow runner posts when a task
// execution finishes (successfully or not).
type CallbackRequest struct {
	ProjectID   string              `json:"project_id"   validate:"required"`
	TaskID      string              `json:"task_id"      validate:"required"`
	TaskType    models.TaskType     `json:"task_type"    validate:"required,oneof=ai human hitl"`
	Status      models.RunnerStatus `json:"status"       validate:"required,oneof=assigned in_progress completed failed"`
	ExecutionID string              `json:"execution_id" validate:"required"`
	ResultData  map[string]any      `json:"result_data,omitempty"`
}

// CallbackIngestor receives status updates and completion callbacks from the
// external workflow runner, reconciles task state, and continues the
// orchestration loop when a completion unblocks further work.
type CallbackIngestor struct {
	persistence  persistence.Persistence
	orchestrator *orchestration.Orchestrator
	eventBus     eventbus.EventPublisher
	validator    *validator.Validate
	logger       *slog.Logger
}

// NewCallbackIngestor creates a callback ingestor.
func NewCallbackIngestor(
	p persistence.Persistence,
	orchestrator *orchestration.Orchestrator,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *CallbackIngestor {
	return &CallbackIngestor{
		persistence:  p,
		orchestrator: orchestrator,
		eventBus:     eventBus,
		validator:    validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger,
	}
}

// UpdateTaskStatus records a runner status notification on a task: the raw
// update is appended to the execution log and the runner status is mapped
// onto the task status machine. Returns the task's resulting status.
func (s *CallbackIngestor) UpdateTaskStatus(ctx context.Context, taskID string, req *TaskStatusUpdateRequest) (models.TaskStatus, error) {
	if req == nil {
		return "", ErrInvalidRequest
	}

	err := s.validator.Struct(req)
	if err != nil {
		return "", NewValidationError("UpdateTaskStatus", "invalid_request", err.Error(), ErrInvalidRequest)
	}

	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		return "", NewValidationError("UpdateTaskStatus", "invalid_progress",
			fmt.Sprintf("progress %d out of range", *req.Progress), ErrInvalidProgress)
	}

	target, ok := models.TaskStatusForRunner(req.Status)
	if !ok {
		return "", NewValidationError("UpdateTaskStatus", "invalid_runner_status",
			fmt.Sprintf("unknown runner status %q", req.Status), ErrInvalidRunnerStatus)
	}

	task, err := s.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return "", err
	}

	task.AppendExecutionUpdate(models.ExecutionUpdate{
		Status:      req.Status,
		ExecutionID: req.ExecutionID,
		Progress:    req.Progress,
		Message:     req.Message,
		Timestamp:   time.Now().UTC(),
	})

	err = models.TransitionTask(task, target)
	if err != nil {
		return "", err
	}

	err = s.persistence.TaskRepository().Save(ctx, task)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "task status updated from runner",
		"task_id", task.ID,
		"runner_status", req.Status,
		"status", task.Status,
		"execution_id", req.ExecutionID)

	return task.Status, nil
}

// IngestCallback processes a completion callback from the workflow runner.
// The execution result is merged into the task's metadata and, when the
// callback reports completion, a task.completed event is published and the
// orchestration loop runs again to pick up whatever the completion unblocked.
func (s *CallbackIngestor) IngestCallback(ctx context.Context, req *CallbackRequest) (*models.Task, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	err := s.validator.Struct(req)
	if err != nil {
		return nil, NewValidationError("IngestCallback", "invalid_request", err.Error(), ErrInvalidRequest)
	}

	project, err := s.persistence.ProjectRepository().GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	task, err := s.persistence.TaskRepository().GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	if task.ProjectID != project.ID {
		return nil, NewValidationError("IngestCallback", "project_mismatch",
			fmt.Sprintf("task %s does not belong to project %s", task.ID, project.ID),
			ErrProjectMismatch)
	}

	target, ok := models.TaskStatusForRunner(req.Status)
	if !ok {
		return nil, NewValidationError("IngestCallback", "invalid_runner_status",
			fmt.Sprintf("unknown runner status %q", req.Status), ErrInvalidRunnerStatus)
	}

	err = models.TransitionTask(task, target)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if len(req.ResultData) > 0 {
		if task.Metadata.LastExecution == nil {
			task.Metadata.LastExecution = make(map[string]any, len(req.ResultData))
		}

		for k, v := range req.ResultData {
			task.Metadata.LastExecution[k] = v
		}
	}

	task.Metadata.LastExecutionID = req.ExecutionID
	task.Metadata.LastExecutionAt = &now

	err = s.persistence.TaskRepository().Save(ctx, task)
	if err != nil {
		return nil, err
	}

	project.LastExecutionID = req.ExecutionID

	err = s.persistence.ProjectRepository().Save(ctx, project)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "callback ingested",
		"project_id", project.ID,
		"task_id", task.ID,
		"runner_status", req.Status,
		"execution_id", req.ExecutionID)

	if task.Status == models.TaskStatusCompleted {
		s.publishTaskCompleted(ctx, task, req)
		s.continueOrchestration(ctx, project.ID)
	}

	return task, nil
}

func (s *CallbackIngestor) publishTaskCompleted(ctx context.Context, task *models.Task, req *CallbackRequest) {
	if s.eventBus == nil {
		return
	}

	event := events.TaskCompleted{
		BaseEvent: events.BaseEvent{
			Type:      events.TaskCompletedEvent,
			Timestamp: time.Now().UTC(),
			ProjectID: task.ProjectID,
		},
		TaskID:      task.ID,
		TaskType:    task.Type,
		ExecutionID: req.ExecutionID,
		Result:      req.ResultData,
	}

	err := s.eventBus.Publish(ctx, task.ProjectID, event)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish task.completed event",
			"task_id", task.ID,
			"error", err)
	}
}

// continueOrchestration runs one orchestration pass after a completion. A
// failure here must not fail the callback: the runner already did its work
// and the sweeper will retry the trigger later.
func (s *CallbackIngestor) continueOrchestration(ctx context.Context, projectID string) {
	if s.orchestrator == nil {
		return
	}

	triggered, err := s.orchestrator.RunPass(ctx, projectID, orchestration.TriggerSourceAutomatic)
	if err != nil {
		s.logger.WarnContext(ctx, "orchestration pass after callback failed",
			"project_id", projectID,
			"error", err)

		return
	}

	if triggered {
		s.logger.InfoContext(ctx, "orchestration re-triggered after task completion",
			"project_id", projectID)
	}
}
