// Package orchestration drives the external workflow runner: outbound
// triggers, completion tracking, and the readiness pass that ties them
// together.
package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/projectpulse/pulse/pkg/eventbus"
	"github.com/projectpulse/pulse/pkg/events"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/otelhelper"
	"github.com/projectpulse/pulse/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultWebhookTimeout = 120 * time.Second

// TriggerSource identifies what initiated an orchestration run.
const (
	TriggerSourceAutomatic = "automatic"
	TriggerSourceManual    = "manual"
	TriggerSourceScheduled = "scheduled"
)

// Trigger posts a project to the external workflow runner. One call, one
// POST, no retries: retry policy belongs to the operator (cron or manual
// re-trigger), not this code.
type Trigger struct {
	webhookURL string
	timeout    time.Duration
	client     *http.Client
	projects   persistence.ProjectRepository
	eventBus   eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewTrigger creates a workflow trigger. A zero timeout falls back to the
// default 120s.
func NewTrigger(
	webhookURL string,
	timeout time.Duration,
	projects persistence.ProjectRepository,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Trigger {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &Trigger{
		webhookURL: webhookURL,
		timeout:    timeout,
		client:     &http.Client{},
		projects:   projects,
		eventBus:   eventBus,
		tracer:     tracer,
		logger:     logger,
	}
}

type triggerPayload struct {
	ProjectID     string             `json:"project_id"`
	TriggerSource string             `json:"trigger_source"`
	ReadyTasks    []triggerTaskEntry `json:"ready_tasks"`
	RequestedAt   time.Time          `json:"requested_at"`
}

type triggerTaskEntry struct {
	ID       string          `json:"id"`
	Type     models.TaskType `json:"type"`
	Title    string          `json:"title"`
	Sequence *int            `json:"sequence,omitempty"`
}

// TriggerWorkflow issues one synchronous POST to the configured webhook.
// It is a silent no-op returning false unless the project's orchestration
// status is running; nothing goes over the network in any other state.
//
// On 2xx the run counter and trigger metadata are persisted together; on
// any failure nothing is mutated.
func (t *Trigger) TriggerWorkflow(ctx context.Context, project *models.Project, readyTasks []*models.Task, source string) (bool, error) {
	if project.OrchestrationStatus != models.OrchestrationRunning {
		t.logger.DebugContext(ctx, "skipping trigger, project not running",
			"project_id", project.ID,
			"orchestration_status", project.OrchestrationStatus)

		return false, nil
	}

	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "orchestration.trigger",
		attribute.String(otelhelper.ProjectIDKey, project.ID),
		attribute.String(otelhelper.TriggerSourceKey, source),
	)
	defer span.End()

	entries := make([]triggerTaskEntry, 0, len(readyTasks))
	for _, task := range readyTasks {
		entries = append(entries, triggerTaskEntry{
			ID:       task.ID,
			Type:     task.Type,
			Title:    task.Title,
			Sequence: task.Sequence,
		})
	}

	now := time.Now().UTC()

	response, err := t.post(ctx, triggerPayload{
		ProjectID:     project.ID,
		TriggerSource: source,
		ReadyTasks:    entries,
		RequestedAt:   now,
	})
	if err != nil {
		otelhelper.SetError(span, err)
		t.logger.WarnContext(ctx, "workflow trigger failed",
			"project_id", project.ID,
			"error", err)

		return false, nil
	}

	project.TotalOrchestrationRuns++
	project.OrchestrationMetadata.LastTriggerAt = &now
	project.OrchestrationMetadata.LastTriggerResponse = response

	err = t.projects.Save(ctx, project)
	if err != nil {
		otelhelper.SetError(span, err)

		return false, fmt.Errorf("failed to persist trigger metadata: %w", err)
	}

	t.publishTriggered(ctx, project, source)

	t.logger.InfoContext(ctx, "workflow triggered",
		"project_id", project.ID,
		"trigger_source", source,
		"run_number", project.TotalOrchestrationRuns,
		"ready_tasks", len(entries))

	return true, nil
}

// post sends the payload and returns the decoded response body on 2xx.
func (t *Trigger) post(ctx context.Context, payload triggerPayload) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trigger payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create trigger request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trigger request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("trigger request returned status %d", resp.StatusCode)
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger response: %w", err)
	}

	response := map[string]any{"status_code": resp.StatusCode}

	if len(responseBody) > 0 {
		var decoded map[string]any
		if json.Unmarshal(responseBody, &decoded) == nil {
			response["body"] = decoded
		}
	}

	return response, nil
}

func (t *Trigger) publishTriggered(ctx context.Context, project *models.Project, source string) {
	if t.eventBus == nil {
		return
	}

	event := events.ProjectTriggered{
		BaseEvent: events.BaseEvent{
			Type:      events.ProjectTriggeredEvent,
			Timestamp: time.Now().UTC(),
			ProjectID: project.ID,
		},
		TriggerSource: source,
		RunNumber:     project.TotalOrchestrationRuns,
	}

	err := t.eventBus.Publish(ctx, project.ID, event)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to publish project.triggered event",
			"project_id", project.ID,
			"error", err)
	}
}
