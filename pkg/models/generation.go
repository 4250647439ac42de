package models

// GenerationStatus is the terminal state of a background generation job.
type GenerationStatus string

const (
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// GeneratedTask is one task proposal produced by the generation engine.
// It becomes a real Task only when the client accepts the generated plan.
type GeneratedTask struct {
	Key            string   `json:"key"` // Stable key used by GeneratedDependency references
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Type           TaskType `json:"type"`
	EstimatedHours float64  `json:"estimated_hours,omitempty"`
}

// GeneratedDependency links two generated tasks by key.
type GeneratedDependency struct {
	Task      string `json:"task"`
	DependsOn string `json:"depends_on"`
}

// GenerationSummary is the engine's own accounting of what it produced.
type GenerationSummary struct {
	AITasks             int     `json:"ai_tasks"`
	HumanTasks          int     `json:"human_tasks"`
	HITLTasks           int     `json:"hitl_tasks"`
	TotalEstimatedHours float64 `json:"total_estimated_hours"`
}

// GenerationRecord is the ephemeral, consume-once result of a background
// generation job, keyed by the requesting UI session. Absence means either
// "not started yet" or "already consumed"; records expire by TTL.
type GenerationRecord struct {
	Status       GenerationStatus      `json:"status"`
	Tasks        []GeneratedTask       `json:"tasks,omitempty"`
	Dependencies []GeneratedDependency `json:"dependencies,omitempty"`
	Metadata     GenerationSummary     `json:"metadata"`
	Error        string                `json:"error,omitempty"`
}
