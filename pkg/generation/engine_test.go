package generation

import (
	"errors"
	"testing"

	"github.com/projectpulse/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResult_AcceptsWellFormed(t *testing.T) {
	assert.NoError(t, ValidateResult(validResult()))
}

func TestValidateResult_RejectsEmpty(t *testing.T) {
	assert.True(t, errors.Is(ValidateResult(nil), ErrEmptyResult))
	assert.True(t, errors.Is(ValidateResult(&Result{}), ErrEmptyResult))
}

func TestValidateResult_RejectsUnknownTaskType(t *testing.T) {
	result := validResult()
	result.Tasks[0].Type = models.TaskType("robot")

	assert.Error(t, ValidateResult(result))
}

func TestValidateResult_RejectsMissingFields(t *testing.T) {
	result := validResult()
	result.Tasks[1].Title = ""

	assert.Error(t, ValidateResult(result))
}

func TestValidateResult_RejectsDanglingDependency(t *testing.T) {
	result := validResult()
	result.Dependencies = append(result.Dependencies, models.GeneratedDependency{
		Task:      "build",
		DependsOn: "ghost",
	})

	assert.Error(t, ValidateResult(result))
}

func TestFallbackResult_IsValid(t *testing.T) {
	fallback := FallbackResult()

	require.NoError(t, ValidateResult(fallback))
	require.Len(t, fallback.Tasks, 3)
	assert.Equal(t, models.GenerationSummary{
		AITasks:             1,
		HumanTasks:          1,
		HITLTasks:           1,
		TotalEstimatedHours: 13,
	}, fallback.Metadata)
}
