package generation

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore implements Store in memory with the same claim-once and
// consume-once semantics as the redis store.
type memoryStore struct {
	mu      sync.Mutex
	started map[string]time.Time
	records map[string]*models.GenerationRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		started: make(map[string]time.Time),
		records: make(map[string]*models.GenerationRecord),
	}
}

func (s *memoryStore) ClaimStarted(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.started[sessionID]; exists {
		return false, nil
	}

	s.started[sessionID] = time.Now().UTC()

	return true, nil
}

func (s *memoryStore) StartedAt(_ context.Context, sessionID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startedAt, exists := s.started[sessionID]
	if !exists {
		return nil, nil
	}

	return &startedAt, nil
}

func (s *memoryStore) PutRecord(_ context.Context, sessionID string, record *models.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[sessionID] = record

	return nil
}

func (s *memoryStore) ConsumeRecord(_ context.Context, sessionID string) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[sessionID]
	if !exists {
		return nil, nil
	}

	delete(s.records, sessionID)
	delete(s.started, sessionID)

	return record, nil
}

type stubEngine struct {
	result *Result
	err    error
	calls  int
	mu     sync.Mutex
	done   chan struct{}
}

func (e *stubEngine) Generate(_ context.Context, _ Request) (*Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.done != nil {
		defer close(e.done)
	}

	return e.result, e.err
}

func (e *stubEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.calls
}

func generationLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newCoordinatorFixture(t *testing.T, engine Engine) (*Coordinator, *memoryStore) {
	t.Helper()

	store := newMemoryStore()
	runner := NewRunner(RunnerConfig{WorkerCount: 1, QueueSize: 10, JobTimeout: 5 * time.Second}, generationLogger())
	runner.Start()
	t.Cleanup(runner.Stop)

	return NewCoordinator(store, engine, runner, otelhelper.NoopTracer(), generationLogger()), store
}

func validResult() *Result {
	return &Result{
		Tasks: []models.GeneratedTask{
			{Key: "design", Title: "Design the thing", Type: models.TaskTypeHuman, EstimatedHours: 4},
			{Key: "build", Title: "Build the thing", Type: models.TaskTypeAI, EstimatedHours: 6},
		},
		Dependencies: []models.GeneratedDependency{{Task: "build", DependsOn: "design"}},
		Metadata:     models.GenerationSummary{AITasks: 1, HumanTasks: 1, TotalEstimatedHours: 10},
	}
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for generation job")
	}
}

func waitForRecord(t *testing.T, store *memoryStore, sessionID string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		store.mu.Lock()
		_, exists := store.records[sessionID]
		store.mu.Unlock()

		if exists {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("timed out waiting for generation record")
}

func TestStart_ClaimsOnce(t *testing.T) {
	engine := &stubEngine{result: validResult()}
	coordinator, _ := newCoordinatorFixture(t, engine)
	ctx := context.Background()

	started, err := coordinator.Start(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)
	assert.True(t, started)

	again, err := coordinator.Start(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)
	assert.False(t, again)
}

func TestPoll_FirstCallStartsGeneration(t *testing.T) {
	engine := &stubEngine{result: validResult(), done: make(chan struct{})}
	coordinator, _ := newCoordinatorFixture(t, engine)
	ctx := context.Background()

	resp, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)
	assert.Equal(t, PollStatusGenerating, resp.Status)
	assert.Greater(t, resp.Progress, 0)

	waitFor(t, engine.done)
	assert.Equal(t, 1, engine.callCount())
}

func TestPoll_ConsumesCompletedResultOnce(t *testing.T) {
	engine := &stubEngine{result: validResult(), done: make(chan struct{})}
	coordinator, store := newCoordinatorFixture(t, engine)
	ctx := context.Background()

	_, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)

	waitFor(t, engine.done)
	waitForRecord(t, store, "s1")

	resp, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)
	assert.Equal(t, PollStatusCompleted, resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.Len(t, resp.Tasks, 2)
	assert.False(t, resp.UsingFallback)

	// The record is gone; the next poll starts a fresh session.
	record, err := store.ConsumeRecord(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestPoll_FailedJobSubstitutesFallback(t *testing.T) {
	engine := &stubEngine{err: errors.New("model unavailable"), done: make(chan struct{})}
	coordinator, store := newCoordinatorFixture(t, engine)
	ctx := context.Background()

	_, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)

	waitFor(t, engine.done)
	waitForRecord(t, store, "s1")

	resp, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)
	assert.Equal(t, PollStatusFailed, resp.Status)
	assert.True(t, resp.UsingFallback)
	assert.Equal(t, "model unavailable", resp.Error)

	require.Len(t, resp.Tasks, 3)
	assert.Equal(t, "setup", resp.Tasks[0].Key)
	assert.Equal(t, "implementation", resp.Tasks[1].Key)
	assert.Equal(t, "qa", resp.Tasks[2].Key)
	assert.Equal(t, []models.GeneratedDependency{
		{Task: "implementation", DependsOn: "setup"},
		{Task: "qa", DependsOn: "implementation"},
	}, resp.Dependencies)
}

func TestPoll_EmptyResultFallsBack(t *testing.T) {
	engine := &stubEngine{result: &Result{}, done: make(chan struct{})}
	coordinator, store := newCoordinatorFixture(t, engine)
	ctx := context.Background()

	_, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)

	waitFor(t, engine.done)
	waitForRecord(t, store, "s1")

	resp, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)
	assert.Equal(t, PollStatusFailed, resp.Status)
	assert.True(t, resp.UsingFallback)
}

func TestPoll_ProgressIsMonotonicWhileGenerating(t *testing.T) {
	engine := &stubEngine{result: validResult()}
	store := newMemoryStore()
	runner := NewRunner(RunnerConfig{WorkerCount: 1, QueueSize: 10, JobTimeout: time.Second}, generationLogger())
	// The runner is never started, so the job stays queued and the
	// session stays in generating.
	coordinator := NewCoordinator(store, engine, runner, otelhelper.NoopTracer(), generationLogger())
	ctx := context.Background()

	first, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	second, err := coordinator.Poll(ctx, "s1", Request{ProjectID: "p1", Context: "build it"})
	require.NoError(t, err)

	assert.Equal(t, PollStatusGenerating, second.Status)
	assert.GreaterOrEqual(t, second.Progress, first.Progress)
	assert.LessOrEqual(t, second.Progress, 95)
}
