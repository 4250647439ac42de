package generation

import (
	"context"

	"github.com/projectpulse/pulse/pkg/models"
)

// StaticEngine always serves the canned fallback plan. It backs
// deployments without an AI key and keeps local development working.
type StaticEngine struct{}

func (StaticEngine) Generate(_ context.Context, _ Request) (*Result, error) {
	return FallbackResult(), nil
}

// FallbackResult returns the canned three-task skeleton substituted when a
// generation job fails, so a session never ends with an empty plan. Order
// and dependencies are fixed: setup, then implementation, then QA.
func FallbackResult() *Result {
	return &Result{
		Tasks: []models.GeneratedTask{
			{
				Key:            "setup",
				Title:          "Project setup",
				Description:    "Prepare the environment, repository, and access needed to start work.",
				Type:           models.TaskTypeHuman,
				EstimatedHours: 2,
			},
			{
				Key:            "implementation",
				Title:          "Implementation",
				Description:    "Build the core deliverable of the project.",
				Type:           models.TaskTypeAI,
				EstimatedHours: 8,
			},
			{
				Key:            "qa",
				Title:          "Quality assurance",
				Description:    "Review and verify the implementation before delivery.",
				Type:           models.TaskTypeHITL,
				EstimatedHours: 3,
			},
		},
		Dependencies: []models.GeneratedDependency{
			{Task: "implementation", DependsOn: "setup"},
			{Task: "qa", DependsOn: "implementation"},
		},
		Metadata: models.GenerationSummary{
			AITasks:             1,
			HumanTasks:          1,
			HITLTasks:           1,
			TotalEstimatedHours: 13,
		},
	}
}
