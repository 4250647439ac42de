package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppendExecutionUpdate_CapsRetention(t *testing.T) {
	task := &Task{ID: "t1", Status: TaskStatusInProgress}

	for i := 0; i < ExecutionUpdateRetention+25; i++ {
		task.AppendExecutionUpdate(ExecutionUpdate{
			Status:      RunnerStatusInProgress,
			ExecutionID: fmt.Sprintf("exec-%d", i),
			Timestamp:   time.Now().UTC(),
		})
	}

	assert.Len(t, task.Metadata.ExecutionUpdates, ExecutionUpdateRetention)

	// Oldest entries are dropped; the newest survives.
	first := task.Metadata.ExecutionUpdates[0]
	last := task.Metadata.ExecutionUpdates[ExecutionUpdateRetention-1]
	assert.Equal(t, "exec-25", first.ExecutionID)
	assert.Equal(t, fmt.Sprintf("exec-%d", ExecutionUpdateRetention+24), last.ExecutionID)
}

func TestValidTaskType(t *testing.T) {
	assert.True(t, ValidTaskType(TaskTypeAI))
	assert.True(t, ValidTaskType(TaskTypeHuman))
	assert.True(t, ValidTaskType(TaskTypeHITL))
	assert.False(t, ValidTaskType(TaskType("robot")))
}
