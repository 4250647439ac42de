package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/projectpulse/pulse/pkg/eventbus"
	"github.com/projectpulse/pulse/pkg/events"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
)

// CompletionTracker flips a project's orchestration status to completed
// once every task is done, and back to running when a completed project
// gains unfinished work again (a reopened task).
type CompletionTracker struct {
	projects persistence.ProjectRepository
	tasks    persistence.TaskRepository
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

// NewCompletionTracker creates a completion tracker.
func NewCompletionTracker(
	projects persistence.ProjectRepository,
	tasks persistence.TaskRepository,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *CompletionTracker {
	return &CompletionTracker{
		projects: projects,
		tasks:    tasks,
		eventBus: eventBus,
		logger:   logger,
	}
}

// IsOrchestrationComplete reports whether every task of the project is
// completed and reconciles the project's orchestration status with that
// answer. A project with zero tasks is never complete. The call is
// idempotent: re-invoking on an already-completed project changes nothing.
func (t *CompletionTracker) IsOrchestrationComplete(ctx context.Context, project *models.Project) (bool, error) {
	tasks, err := t.tasks.GetByProject(ctx, project.ID)
	if err != nil {
		return false, err
	}

	if len(tasks) == 0 {
		return false, nil
	}

	for _, task := range tasks {
		if task.Status != models.TaskStatusCompleted {
			return false, t.ensureNotStaleCompleted(ctx, project)
		}
	}

	if project.OrchestrationStatus == models.OrchestrationCompleted {
		return true, nil
	}

	err = models.TransitionOrchestration(project, models.OrchestrationCompleted)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	project.OrchestrationCompletedAt = &now

	err = t.projects.Save(ctx, project)
	if err != nil {
		return false, err
	}

	t.publishCompleted(ctx, project, len(tasks))

	t.logger.InfoContext(ctx, "project orchestration completed",
		"project_id", project.ID,
		"task_count", len(tasks))

	return true, nil
}

// ensureNotStaleCompleted moves a completed project back to running when
// one of its tasks was reopened.
func (t *CompletionTracker) ensureNotStaleCompleted(ctx context.Context, project *models.Project) error {
	if project.OrchestrationStatus != models.OrchestrationCompleted {
		return nil
	}

	err := models.TransitionOrchestration(project, models.OrchestrationRunning)
	if err != nil {
		return err
	}

	project.OrchestrationCompletedAt = nil

	t.logger.InfoContext(ctx, "project orchestration reopened",
		"project_id", project.ID)

	return t.projects.Save(ctx, project)
}

func (t *CompletionTracker) publishCompleted(ctx context.Context, project *models.Project, taskCount int) {
	if t.eventBus == nil {
		return
	}

	event := events.ProjectCompleted{
		BaseEvent: events.BaseEvent{
			Type:      events.ProjectCompletedEvent,
			Timestamp: time.Now().UTC(),
			ProjectID: project.ID,
		},
		CompletedAt: *project.OrchestrationCompletedAt,
		TaskCount:   taskCount,
	}

	err := t.eventBus.Publish(ctx, project.ID, event)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to publish project.orchestration.completed event",
			"project_id", project.ID,
			"error", err)
	}
}
