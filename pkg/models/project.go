package models

import "time"

// ProjectStatus is the business lifecycle of a project, independent of
// orchestration.
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// OrchestrationStatus tracks the workflow-runner lifecycle of a project.
type OrchestrationStatus string

const (
	OrchestrationNotStarted OrchestrationStatus = "not_started"
	OrchestrationRunning    OrchestrationStatus = "running"
	OrchestrationPaused     OrchestrationStatus = "paused"
	OrchestrationCompleted  OrchestrationStatus = "completed"
	OrchestrationFailed     OrchestrationStatus = "failed"
)

// OrchestrationMetadata records the last outbound trigger attempt.
type OrchestrationMetadata struct {
	LastTriggerAt       *time.Time     `json:"last_trigger_at,omitempty"`
	LastTriggerResponse map[string]any `json:"last_trigger_response,omitempty"`
}

// Project owns a set of tasks and carries the orchestration state the
// engine mutates. Tasks are deleted with their project (cascade), never
// independently collected.
type Project struct {
	ID                       string                `json:"id"`
	Name                     string                `json:"name"        validate:"required,min=3"`
	Description              string                `json:"description"`
	Status                   ProjectStatus         `json:"status"`
	OrchestrationStatus      OrchestrationStatus   `json:"orchestration_status"`
	OrchestrationStartedAt   *time.Time            `json:"orchestration_started_at,omitempty"`
	OrchestrationCompletedAt *time.Time            `json:"orchestration_completed_at,omitempty"`
	LastExecutionID          string                `json:"last_n8n_execution_id,omitempty"`
	TotalOrchestrationRuns   int                   `json:"total_orchestration_runs"`
	OrchestrationMetadata    OrchestrationMetadata `json:"orchestration_metadata"`
	Owner                    string                `json:"owner"`
	CreatedAt                time.Time             `json:"created_at"`
	UpdatedAt                time.Time             `json:"updated_at"`
	DeletedAt                *time.Time            `json:"deleted_at,omitempty"`
}
