package file

import (
	"context"
	"testing"

	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRepository_SaveAndGet(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	project := &models.Project{
		Name:                "Website Relaunch",
		Status:              models.ProjectStatusActive,
		OrchestrationStatus: models.OrchestrationNotStarted,
		Owner:               "team-a",
	}

	err := p.ProjectRepository().Save(ctx, project)
	require.NoError(t, err)
	require.NotEmpty(t, project.ID)
	assert.False(t, project.CreatedAt.IsZero())

	loaded, err := p.ProjectRepository().GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Website Relaunch", loaded.Name)
	assert.Equal(t, models.OrchestrationNotStarted, loaded.OrchestrationStatus)
}

func TestProjectRepository_GetByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.ProjectRepository().GetByID(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, persistence.IsProjectNotFound(err))
}

func TestProjectRepository_DeleteCascadesTasks(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	project := &models.Project{Name: "Doomed Project"}
	require.NoError(t, p.ProjectRepository().Save(ctx, project))

	task := &models.Task{
		ProjectID: project.ID,
		Title:     "Only Task",
		Type:      models.TaskTypeAI,
		Status:    models.TaskStatusPending,
	}
	require.NoError(t, p.TaskRepository().Save(ctx, task))

	err := p.ProjectRepository().Delete(ctx, project.ID)
	require.NoError(t, err)

	_, err = p.ProjectRepository().GetByID(ctx, project.ID)
	assert.True(t, persistence.IsProjectNotFound(err))

	_, err = p.TaskRepository().GetByID(ctx, task.ID)
	assert.True(t, persistence.IsTaskNotFound(err))
}

func TestTaskRepository_GetByProject(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	projectA := &models.Project{Name: "Project A"}
	projectB := &models.Project{Name: "Project B"}
	require.NoError(t, p.ProjectRepository().Save(ctx, projectA))
	require.NoError(t, p.ProjectRepository().Save(ctx, projectB))

	for _, task := range []*models.Task{
		{ProjectID: projectA.ID, Title: "A task one", Type: models.TaskTypeAI, Status: models.TaskStatusPending},
		{ProjectID: projectA.ID, Title: "A task two", Type: models.TaskTypeHuman, Status: models.TaskStatusPending},
		{ProjectID: projectB.ID, Title: "B task one", Type: models.TaskTypeHITL, Status: models.TaskStatusPending},
	} {
		require.NoError(t, p.TaskRepository().Save(ctx, task))
	}

	tasks, err := p.TaskRepository().GetByProject(ctx, projectA.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = p.TaskRepository().GetByProject(ctx, projectB.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())

	assert.NoError(t, p.HealthCheck(context.Background()))
}
