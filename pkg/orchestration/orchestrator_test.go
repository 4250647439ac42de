package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/otelhelper"
	"github.com/projectpulse/pulse/pkg/persistence/file"
	"github.com/projectpulse/pulse/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedTrigger struct {
	ProjectID     string `json:"project_id"`
	TriggerSource string `json:"trigger_source"`
	ReadyTasks    []struct {
		ID string `json:"id"`
	} `json:"ready_tasks"`
}

func newOrchestratorFixture(t *testing.T) (*Orchestrator, *file.Persistence, func() []capturedTrigger) {
	t.Helper()

	var mu sync.Mutex

	captured := make([]capturedTrigger, 0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload capturedTrigger
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		mu.Lock()
		captured = append(captured, payload)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	p := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}
	logger := testLogger()

	trigger := NewTrigger(server.URL, 5*time.Second, p.ProjectRepository(), publisher, otelhelper.NoopTracer(), logger)
	tracker := NewCompletionTracker(p.ProjectRepository(), p.TaskRepository(), publisher, logger)
	resolver := scheduler.NewResolver(scheduler.DefaultBatchCaps())

	orchestrator := NewOrchestrator(p.ProjectRepository(), p.TaskRepository(), resolver, trigger, tracker, logger)

	return orchestrator, p, func() []capturedTrigger {
		mu.Lock()
		defer mu.Unlock()

		return append([]capturedTrigger{}, captured...)
	}
}

func TestRunPass_TriggersWithReadyTasks(t *testing.T) {
	orchestrator, p, captured := newOrchestratorFixture(t)
	ctx := context.Background()

	project := &models.Project{
		Name:                "Fan out",
		OrchestrationStatus: models.OrchestrationRunning,
	}
	require.NoError(t, p.ProjectRepository().Save(ctx, project))

	one, two := 1, 2
	a := &models.Task{ID: "a", ProjectID: project.ID, Title: "Root task", Type: models.TaskTypeAI, Status: models.TaskStatusPending, Sequence: &one}
	b := &models.Task{ID: "b", ProjectID: project.ID, Title: "Child task", Type: models.TaskTypeAI, Status: models.TaskStatusPending, Sequence: &two, Dependencies: []string{"a"}}
	require.NoError(t, p.TaskRepository().Save(ctx, a))
	require.NoError(t, p.TaskRepository().Save(ctx, b))

	triggered, err := orchestrator.RunPass(ctx, project.ID, TriggerSourceAutomatic)

	require.NoError(t, err)
	assert.True(t, triggered)

	calls := captured()
	require.Len(t, calls, 1)
	assert.Equal(t, project.ID, calls[0].ProjectID)
	assert.Equal(t, TriggerSourceAutomatic, calls[0].TriggerSource)
	require.Len(t, calls[0].ReadyTasks, 1)
	assert.Equal(t, "a", calls[0].ReadyTasks[0].ID)
}

func TestRunPass_NoReadyTasksNoTrigger(t *testing.T) {
	orchestrator, p, captured := newOrchestratorFixture(t)
	ctx := context.Background()

	project := &models.Project{
		Name:                "All blocked",
		OrchestrationStatus: models.OrchestrationRunning,
	}
	require.NoError(t, p.ProjectRepository().Save(ctx, project))

	task := &models.Task{
		ProjectID:    project.ID,
		Title:        "Starved task",
		Type:         models.TaskTypeHuman,
		Status:       models.TaskStatusPending,
		Dependencies: []string{"missing"},
	}
	require.NoError(t, p.TaskRepository().Save(ctx, task))

	triggered, err := orchestrator.RunPass(ctx, project.ID, TriggerSourceScheduled)

	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Empty(t, captured())
}

func TestRunPass_CompletedProjectDoesNotTrigger(t *testing.T) {
	orchestrator, p, captured := newOrchestratorFixture(t)
	ctx := context.Background()

	project := &models.Project{
		Name:                "Done project",
		OrchestrationStatus: models.OrchestrationRunning,
	}
	require.NoError(t, p.ProjectRepository().Save(ctx, project))

	task := &models.Task{
		ProjectID: project.ID,
		Title:     "Finished task",
		Type:      models.TaskTypeAI,
		Status:    models.TaskStatusCompleted,
	}
	require.NoError(t, p.TaskRepository().Save(ctx, task))

	triggered, err := orchestrator.RunPass(ctx, project.ID, TriggerSourceAutomatic)

	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Empty(t, captured())

	loaded, err := p.ProjectRepository().GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrchestrationCompleted, loaded.OrchestrationStatus)
}
