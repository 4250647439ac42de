// Package models defines the core domain models for project task orchestration.
package models

import "time"

// TaskType classifies who (or what) executes a task.
type TaskType string

const (
	TaskTypeAI    TaskType = "ai"    // Executed by an automated AI worker
	TaskTypeHuman TaskType = "human" // Executed by a person
	TaskTypeHITL  TaskType = "hitl"  // Automated with a human approval step
)

// ValidTaskType reports whether t is one of the known task types.
func ValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeAI, TaskTypeHuman, TaskTypeHITL:
		return true
	default:
		return false
	}
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusGenerated  TaskStatus = "generated"
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// ExecutionUpdateRetention caps the per-task execution update log. The log
// lives in a JSON column, so it is bounded rather than append-forever; the
// oldest entries are dropped once the cap is reached.
const ExecutionUpdateRetention = 100

// RunnerStatus is the status vocabulary of the external workflow runner.
// It is narrower than TaskStatus and is mapped onto it at ingestion.
type RunnerStatus string

const (
	RunnerStatusAssigned   RunnerStatus = "assigned"
	RunnerStatusInProgress RunnerStatus = "in_progress"
	RunnerStatusCompleted  RunnerStatus = "completed"
	RunnerStatusFailed     RunnerStatus = "failed"
)

// TaskStatusForRunner maps a runner-reported status onto the task status
// machine: assigned means an actor picked the task up, failed parks the
// task as blocked until an operator intervenes.
func TaskStatusForRunner(status RunnerStatus) (TaskStatus, bool) {
	switch status {
	case RunnerStatusAssigned, RunnerStatusInProgress:
		return TaskStatusInProgress, true
	case RunnerStatusCompleted:
		return TaskStatusCompleted, true
	case RunnerStatusFailed:
		return TaskStatusBlocked, true
	default:
		return "", false
	}
}

// ExecutionUpdate is one entry in a task's execution update log, reported
// by the external workflow runner. Status keeps the runner's own wording.
type ExecutionUpdate struct {
	Status      RunnerStatus `json:"status"`
	ExecutionID string       `json:"execution_id"`
	Progress    *int         `json:"progress,omitempty"` // 0-100 when present
	Message     string       `json:"message,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TaskMetadata holds execution bookkeeping reported by the workflow runner.
type TaskMetadata struct {
	ExecutionUpdates []ExecutionUpdate `json:"execution_updates,omitempty"`
	LastExecution    map[string]any    `json:"last_execution,omitempty"`
	LastExecutionID  string            `json:"last_execution_id,omitempty"`
	LastExecutionAt  *time.Time        `json:"last_execution_at,omitempty"`
}

// Task represents a single unit of work inside a project. Dependencies
// reference task IDs within the same project; a task becomes ready once
// every dependency is completed.
type Task struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"   validate:"required"`
	Title        string       `json:"title"        validate:"required,min=3"`
	Description  string       `json:"description"`
	Type         TaskType     `json:"type"         validate:"required,oneof=ai human hitl"`
	Status       TaskStatus   `json:"status"`
	Dependencies []string     `json:"dependencies"`
	Sequence     *int         `json:"sequence,omitempty"` // Tie-break ordering; nil sorts last
	Metadata     TaskMetadata `json:"metadata"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AppendExecutionUpdate records one runner notification on the task,
// dropping the oldest entries beyond ExecutionUpdateRetention.
func (t *Task) AppendExecutionUpdate(update ExecutionUpdate) {
	t.Metadata.ExecutionUpdates = append(t.Metadata.ExecutionUpdates, update)

	if overflow := len(t.Metadata.ExecutionUpdates) - ExecutionUpdateRetention; overflow > 0 {
		t.Metadata.ExecutionUpdates = t.Metadata.ExecutionUpdates[overflow:]
	}
}
