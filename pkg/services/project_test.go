package services

import (
	"context"
	"errors"
	"testing"

	"github.com/projectpulse/pulse/pkg/events"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
	"github.com/projectpulse/pulse/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProjectFixture(t *testing.T) (*Project, *file.Persistence, *recordingPublisher, context.Context) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}

	return NewProject(p, publisher, testLogger()), p, publisher, context.Background()
}

func TestProjectCreate_Defaults(t *testing.T) {
	service, _, _, ctx := newProjectFixture(t)

	project, err := service.Create(ctx, &models.Project{Name: "Fresh"})
	require.NoError(t, err)

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, models.ProjectStatusDraft, project.Status)
	assert.Equal(t, models.OrchestrationNotStarted, project.OrchestrationStatus)
}

func TestProjectUpdateStatus_ActivationStartsOrchestration(t *testing.T) {
	service, _, _, ctx := newProjectFixture(t)

	project, err := service.Create(ctx, &models.Project{Name: "Activate me"})
	require.NoError(t, err)

	updated, err := service.UpdateStatus(ctx, project.ID, models.ProjectStatusActive)
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusActive, updated.Status)
	assert.Equal(t, models.OrchestrationRunning, updated.OrchestrationStatus)
	require.NotNil(t, updated.OrchestrationStartedAt)
}

func TestProjectUpdateStatus_ReactivationDoesNotRestart(t *testing.T) {
	service, _, _, ctx := newProjectFixture(t)

	project, err := service.Create(ctx, &models.Project{Name: "Twice"})
	require.NoError(t, err)

	first, err := service.UpdateStatus(ctx, project.ID, models.ProjectStatusActive)
	require.NoError(t, err)

	startedAt := first.OrchestrationStartedAt

	again, err := service.UpdateStatus(ctx, project.ID, models.ProjectStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.OrchestrationRunning, again.OrchestrationStatus)
	assert.Equal(t, startedAt, again.OrchestrationStartedAt)
}

func TestProjectPauseResume(t *testing.T) {
	service, _, _, ctx := newProjectFixture(t)

	project, err := service.Create(ctx, &models.Project{Name: "Toggle"})
	require.NoError(t, err)

	_, err = service.Pause(ctx, project.ID)
	require.Error(t, err)

	var transitionErr *models.InvalidTransitionError
	assert.True(t, errors.As(err, &transitionErr))

	_, err = service.UpdateStatus(ctx, project.ID, models.ProjectStatusActive)
	require.NoError(t, err)

	paused, err := service.Pause(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrchestrationPaused, paused.OrchestrationStatus)

	resumed, err := service.Resume(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrchestrationRunning, resumed.OrchestrationStatus)
}

func TestProjectFail_PublishesEvent(t *testing.T) {
	service, _, publisher, ctx := newProjectFixture(t)

	project, err := service.Create(ctx, &models.Project{Name: "Doomed"})
	require.NoError(t, err)

	_, err = service.UpdateStatus(ctx, project.ID, models.ProjectStatusActive)
	require.NoError(t, err)

	failed, err := service.Fail(ctx, project.ID, "runner unreachable")
	require.NoError(t, err)
	assert.Equal(t, models.OrchestrationFailed, failed.OrchestrationStatus)

	published := publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.ProjectFailedEvent, published[0].GetType())
}

func TestProjectDelete_CascadesToTasks(t *testing.T) {
	service, p, _, ctx := newProjectFixture(t)

	project, err := service.Create(ctx, &models.Project{Name: "Short lived"})
	require.NoError(t, err)

	task := &models.Task{
		ProjectID: project.ID,
		Title:     "Orphan to be",
		Type:      models.TaskTypeAI,
		Status:    models.TaskStatusPending,
	}
	require.NoError(t, p.TaskRepository().Save(ctx, task))

	require.NoError(t, service.Delete(ctx, project.ID))

	_, err = service.FetchByID(ctx, project.ID)
	assert.True(t, persistence.IsProjectNotFound(err))

	_, err = p.TaskRepository().GetByID(ctx, task.ID)
	assert.True(t, persistence.IsTaskNotFound(err))
}
