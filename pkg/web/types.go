// Package web provides HTTP request and response types for the orchestration API.
package web

import "github.com/projectpulse/pulse/pkg/models"

// CreateProjectRequest represents the request body for creating a new project.
type CreateProjectRequest struct {
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
	Owner       string `json:"owner"       validate:"required"`
}

// UpdateProjectRequest represents the request body for updating a project.
// All fields are optional to support partial updates. Orchestration accepts
// the operator toggles "pause" and "resume".
type UpdateProjectRequest struct {
	Name          *string               `json:"name,omitempty"          validate:"omitempty,min=3"`
	Description   *string               `json:"description,omitempty"`
	Status        *models.ProjectStatus `json:"status,omitempty"        validate:"omitempty,oneof=draft planning active completed archived"`
	Orchestration *string               `json:"orchestration,omitempty" validate:"omitempty,oneof=pause resume"`
}

// CreateTaskRequest represents the request body for adding a task to a project.
type CreateTaskRequest struct {
	Title        string          `json:"title"        validate:"required,min=3"`
	Description  string          `json:"description"`
	Type         models.TaskType `json:"type"         validate:"required,oneof=ai human hitl"`
	Dependencies []string        `json:"dependencies"`
	Sequence     *int            `json:"sequence,omitempty"`
}

// UpdateTaskRequest represents the request body for updating a task.
type UpdateTaskRequest struct {
	Title        *string            `json:"title,omitempty"        validate:"omitempty,min=3"`
	Description  *string            `json:"description,omitempty"`
	Status       *models.TaskStatus `json:"status,omitempty"       validate:"omitempty,oneof=generated pending in_progress review blocked completed cancelled"`
	Dependencies *[]string          `json:"dependencies,omitempty"`
	Sequence     *int               `json:"sequence,omitempty"`
}

// TriggerProjectRequest optionally names who asked for a manual re-trigger.
type TriggerProjectRequest struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// StartGenerationRequest carries the generation inputs for a UI session.
type StartGenerationRequest struct {
	ProjectID     string         `json:"project_id"     validate:"required"`
	Context       string         `json:"context"        validate:"required"`
	PriorAnalysis map[string]any `json:"prior_analysis,omitempty"`
}
