// Package events defines event types and structures for orchestration
// lifecycle notifications.
package events

import (
	"time"

	"github.com/projectpulse/pulse/pkg/models"
)

type EventType string

// Topic carries every orchestration event.
const Topic = "pulse.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// TaskCompletedEvent fires when the workflow runner reports a task as
	// completed. It never fires for assigned/in_progress/failed callbacks.
	TaskCompletedEvent EventType = "task.completed"

	// ProjectTriggeredEvent fires after a successful outbound trigger of
	// the workflow runner.
	ProjectTriggeredEvent EventType = "project.triggered"

	// ProjectCompletedEvent fires when the completion tracker flips a
	// project's orchestration status to completed.
	ProjectCompletedEvent EventType = "project.orchestration.completed"

	// ProjectFailedEvent fires when trigger or ingestion marks a project
	// as failed.
	ProjectFailedEvent EventType = "project.orchestration.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"project_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type TaskCompleted struct {
	BaseEvent

	TaskID      string          `json:"task_id"`
	TaskType    models.TaskType `json:"task_type"`
	ExecutionID string          `json:"execution_id"`
	Result      map[string]any  `json:"result,omitempty"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type ProjectTriggered struct {
	BaseEvent

	TriggerSource string `json:"trigger_source"`
	RunNumber     int    `json:"run_number"`
}

func (e ProjectTriggered) GetType() EventType {
	return ProjectTriggeredEvent
}

type ProjectCompleted struct {
	BaseEvent

	CompletedAt time.Time `json:"completed_at"`
	TaskCount   int       `json:"task_count"`
}

func (e ProjectCompleted) GetType() EventType {
	return ProjectCompletedEvent
}

type ProjectFailed struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e ProjectFailed) GetType() EventType {
	return ProjectFailedEvent
}
