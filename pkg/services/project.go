// Package services provides the business operations of the orchestration
// engine: project lifecycle, task management, and callback ingestion.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/projectpulse/pulse/pkg/eventbus"
	"github.com/projectpulse/pulse/pkg/events"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
)

// Project handles project-related business operations.
type Project struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewProject creates a new project service.
func NewProject(p persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Project {
	return &Project{
		persistence: p,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Project) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create stores a new project with orchestration not yet started.
func (s *Project) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	if project == nil {
		return nil, ErrProjectNil
	}

	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}

	project.OrchestrationStatus = models.OrchestrationNotStarted

	err := s.persistence.ProjectRepository().Save(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// Update persists field changes on an already-loaded project. Status
// machines are not involved here; callers use UpdateStatus, Pause, and
// Resume for those.
func (s *Project) Update(ctx context.Context, project *models.Project) (*models.Project, error) {
	if project == nil {
		return nil, ErrProjectNil
	}

	err := s.persistence.ProjectRepository().Save(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return project, nil
}

// List returns all projects.
func (s *Project) List(ctx context.Context) ([]*models.Project, error) {
	return s.persistence.ProjectRepository().GetAll(ctx)
}

// FetchByID returns a single project.
func (s *Project) FetchByID(ctx context.Context, id string) (*models.Project, error) {
	return s.persistence.ProjectRepository().GetByID(ctx, id)
}

// UpdateStatus moves a project's business status. Activating a project
// starts orchestration: not_started becomes running and the start time is
// stamped.
func (s *Project) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) (*models.Project, error) {
	project, err := s.persistence.ProjectRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	project.Status = status

	if status == models.ProjectStatusActive && project.OrchestrationStatus == models.OrchestrationNotStarted {
		err = models.TransitionOrchestration(project, models.OrchestrationRunning)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		project.OrchestrationStartedAt = &now

		s.logger.InfoContext(ctx, "project orchestration started", "project_id", project.ID)
	}

	err = s.persistence.ProjectRepository().Save(ctx, project)
	if err != nil {
		return nil, err
	}

	return project, nil
}

// Pause suspends triggering for a project. The operator toggle only works
// from running.
func (s *Project) Pause(ctx context.Context, id string) (*models.Project, error) {
	return s.transitionOrchestration(ctx, id, models.OrchestrationPaused)
}

// Resume re-enables triggering for a paused project.
func (s *Project) Resume(ctx context.Context, id string) (*models.Project, error) {
	return s.transitionOrchestration(ctx, id, models.OrchestrationRunning)
}

// Fail marks a project's orchestration as failed and publishes the
// corresponding event.
func (s *Project) Fail(ctx context.Context, id, reason string) (*models.Project, error) {
	project, err := s.transitionOrchestration(ctx, id, models.OrchestrationFailed)
	if err != nil {
		return nil, err
	}

	if s.eventBus != nil {
		event := events.ProjectFailed{
			BaseEvent: events.BaseEvent{
				Type:      events.ProjectFailedEvent,
				Timestamp: time.Now().UTC(),
				ProjectID: project.ID,
			},
			Reason: reason,
		}

		err = s.eventBus.Publish(ctx, project.ID, event)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to publish project failure event",
				"project_id", project.ID,
				"error", err)
		}
	}

	return project, nil
}

// Delete removes a project and, through the persistence layer, its tasks.
func (s *Project) Delete(ctx context.Context, id string) error {
	return s.persistence.ProjectRepository().Delete(ctx, id)
}

func (s *Project) transitionOrchestration(ctx context.Context, id string, to models.OrchestrationStatus) (*models.Project, error) {
	project, err := s.persistence.ProjectRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = models.TransitionOrchestration(project, to)
	if err != nil {
		return nil, err
	}

	err = s.persistence.ProjectRepository().Save(ctx, project)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "project orchestration status changed",
		"project_id", project.ID,
		"orchestration_status", to)

	return project, nil
}
