package orchestration

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/projectpulse/pulse/pkg/eventbus"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/otelhelper"
	"github.com/projectpulse/pulse/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Events() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event{}, p.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTriggerFixture(t *testing.T, handler http.HandlerFunc) (*Trigger, *file.Persistence, *recordingPublisher, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}

	trigger := NewTrigger(
		server.URL,
		5*time.Second,
		p.ProjectRepository(),
		publisher,
		otelhelper.NoopTracer(),
		testLogger(),
	)

	return trigger, p, publisher, server
}

func TestTriggerWorkflow_Success(t *testing.T) {
	requests := 0

	trigger, p, publisher, _ := newTriggerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		requests++

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"execution_id": "exec-42"}`))
	})

	ctx := context.Background()
	project := &models.Project{
		Name:                "Triggerable",
		Status:              models.ProjectStatusActive,
		OrchestrationStatus: models.OrchestrationRunning,
	}
	require.NoError(t, p.ProjectRepository().Save(ctx, project))

	ready := []*models.Task{{ID: "t1", Title: "Ready task", Type: models.TaskTypeAI}}

	triggered, err := trigger.TriggerWorkflow(ctx, project, ready, TriggerSourceAutomatic)

	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, 1, requests)

	loaded, err := p.ProjectRepository().GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.TotalOrchestrationRuns)
	require.NotNil(t, loaded.OrchestrationMetadata.LastTriggerAt)
	require.NotNil(t, loaded.OrchestrationMetadata.LastTriggerResponse)

	events := publisher.Events()
	require.Len(t, events, 1)
}

func TestTriggerWorkflow_PausedIsSilentNoOp(t *testing.T) {
	requests := 0

	trigger, p, publisher, _ := newTriggerFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	project := &models.Project{
		Name:                "Paused project",
		OrchestrationStatus: models.OrchestrationPaused,
	}
	require.NoError(t, p.ProjectRepository().Save(ctx, project))

	triggered, err := trigger.TriggerWorkflow(ctx, project, nil, TriggerSourceAutomatic)

	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Zero(t, requests, "no HTTP request may be sent for a paused project")
	assert.Empty(t, publisher.Events())
	assert.Zero(t, project.TotalOrchestrationRuns)
}

func TestTriggerWorkflow_NotStartedAndCompletedAreNoOps(t *testing.T) {
	trigger, _, _, _ := newTriggerFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})

	for _, status := range []models.OrchestrationStatus{
		models.OrchestrationNotStarted,
		models.OrchestrationCompleted,
		models.OrchestrationFailed,
	} {
		project := &models.Project{ID: "p", OrchestrationStatus: status}

		triggered, err := trigger.TriggerWorkflow(context.Background(), project, nil, TriggerSourceManual)

		require.NoError(t, err)
		assert.False(t, triggered, "status %s must not trigger", status)
	}
}

func TestTriggerWorkflow_Non2xxLeavesProjectUntouched(t *testing.T) {
	trigger, p, publisher, _ := newTriggerFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx := context.Background()
	project := &models.Project{
		Name:                "Unlucky project",
		OrchestrationStatus: models.OrchestrationRunning,
	}
	require.NoError(t, p.ProjectRepository().Save(ctx, project))

	triggered, err := trigger.TriggerWorkflow(ctx, project, nil, TriggerSourceAutomatic)

	require.NoError(t, err)
	assert.False(t, triggered)

	loaded, err := p.ProjectRepository().GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Zero(t, loaded.TotalOrchestrationRuns)
	assert.Nil(t, loaded.OrchestrationMetadata.LastTriggerAt)
	assert.Empty(t, publisher.Events())
}

func TestTriggerWorkflow_TransportFailure(t *testing.T) {
	trigger, _, _, server := newTriggerFixture(t, func(w http.ResponseWriter, _ *http.Request) {})
	server.Close()

	project := &models.Project{ID: "p", OrchestrationStatus: models.OrchestrationRunning}

	triggered, err := trigger.TriggerWorkflow(context.Background(), project, nil, TriggerSourceAutomatic)

	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Zero(t, project.TotalOrchestrationRuns)
}
