package orchestration

import (
	"context"
	"log/slog"

	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
	"github.com/projectpulse/pulse/pkg/scheduler"
)

// Orchestrator runs one full pass of the orchestration loop for a project:
// completion check, readiness resolution, and (when anything is ready) an
// outbound trigger. Callback ingestion, the manual re-trigger endpoint,
// and the sweeper all funnel through here.
type Orchestrator struct {
	projects persistence.ProjectRepository
	tasks    persistence.TaskRepository
	resolver *scheduler.Resolver
	trigger  *Trigger
	tracker  *CompletionTracker
	logger   *slog.Logger
}

// NewOrchestrator wires the orchestration pass.
func NewOrchestrator(
	projects persistence.ProjectRepository,
	tasks persistence.TaskRepository,
	resolver *scheduler.Resolver,
	trigger *Trigger,
	tracker *CompletionTracker,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		projects: projects,
		tasks:    tasks,
		resolver: resolver,
		trigger:  trigger,
		tracker:  tracker,
		logger:   logger,
	}
}

// RunPass executes one orchestration pass. It returns whether the external
// runner was triggered.
func (o *Orchestrator) RunPass(ctx context.Context, projectID, source string) (bool, error) {
	project, err := o.projects.GetByID(ctx, projectID)
	if err != nil {
		return false, err
	}

	complete, err := o.tracker.IsOrchestrationComplete(ctx, project)
	if err != nil {
		return false, err
	}

	if complete {
		return false, nil
	}

	if project.OrchestrationStatus != models.OrchestrationRunning {
		return false, nil
	}

	tasks, err := o.tasks.GetByProject(ctx, projectID)
	if err != nil {
		return false, err
	}

	ready := o.resolver.ReadyTasks(tasks)
	if len(ready) == 0 {
		o.logger.DebugContext(ctx, "no ready tasks, skipping trigger",
			"project_id", projectID)

		return false, nil
	}

	return o.trigger.TriggerWorkflow(ctx, project, ready, source)
}

// ReadyTasks exposes the current readiness view for a project without
// triggering anything.
func (o *Orchestrator) ReadyTasks(ctx context.Context, projectID string) ([]*models.Task, error) {
	tasks, err := o.tasks.GetByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return o.resolver.ReadyTasks(tasks), nil
}
