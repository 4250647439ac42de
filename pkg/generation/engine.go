// Package generation off-loads slow AI task-generation to background
// workers and bridges the result back to a polling client through an
// ephemeral, consume-once record store.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/projectpulse/pulse/pkg/models"
)

// Request carries the inputs of one generation session.
type Request struct {
	ProjectID     string         `json:"project_id"`
	Context       string         `json:"context"`
	PriorAnalysis map[string]any `json:"prior_analysis,omitempty"`
}

// Result is what an engine produces: a task breakdown plus its own
// accounting. The coordinator validates it before accepting it.
type Result struct {
	Tasks        []models.GeneratedTask       `json:"tasks"`
	Dependencies []models.GeneratedDependency `json:"dependencies"`
	Metadata     models.GenerationSummary     `json:"metadata"`
}

// Engine turns a generation request into a task breakdown. Implementations
// call an external AI service and may block for minutes; the coordinator
// always runs them on background workers.
type Engine interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ErrEmptyResult marks an engine run that produced no tasks. The
// coordinator treats it like any other failure and falls back.
var ErrEmptyResult = errors.New("generation produced no tasks")

// resultSchema constrains what an engine may hand back. Engines wrap LLM
// output, so structure is checked here rather than trusted.
var resultSchema = map[string]any{
	"type":     "object",
	"required": []string{"tasks"},
	"properties": map[string]any{
		"tasks": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"key", "title", "type"},
				"properties": map[string]any{
					"key":             map[string]any{"type": "string", "minLength": 1},
					"title":           map[string]any{"type": "string", "minLength": 1},
					"description":     map[string]any{"type": "string"},
					"type":            map[string]any{"type": "string", "enum": []string{"ai", "human", "hitl"}},
					"estimated_hours": map[string]any{"type": "number", "minimum": 0},
				},
			},
		},
		"dependencies": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"task", "depends_on"},
				"properties": map[string]any{
					"task":       map[string]any{"type": "string", "minLength": 1},
					"depends_on": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
		"metadata": map[string]any{"type": "object"},
	},
}

// ValidateResult checks an engine result against the schema and rejects
// dependency references to unknown task keys.
func ValidateResult(result *Result) error {
	if result == nil || len(result.Tasks) == 0 {
		return ErrEmptyResult
	}

	schemaLoader := gojsonschema.NewGoLoader(resultSchema)
	dataLoader := gojsonschema.NewGoLoader(result)

	validation, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate generation result: %w", err)
	}

	if !validation.Valid() {
		messages := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("generation result rejected: %v", messages)
	}

	keys := make(map[string]struct{}, len(result.Tasks))
	for _, task := range result.Tasks {
		keys[task.Key] = struct{}{}
	}

	for _, dep := range result.Dependencies {
		if _, ok := keys[dep.Task]; !ok {
			return fmt.Errorf("generation result rejected: dependency references unknown task %q", dep.Task)
		}

		if _, ok := keys[dep.DependsOn]; !ok {
			return fmt.Errorf("generation result rejected: dependency references unknown task %q", dep.DependsOn)
		}
	}

	return nil
}
