package scheduler

import "github.com/projectpulse/pulse/pkg/models"

// Default per-type caps: a single readiness pass hands out at most this
// many tasks per type, bounding the number of concurrent external actors.
const (
	DefaultAICap    = 2
	DefaultHumanCap = 1
	DefaultHITLCap  = 1
)

// BatchCaps bounds how many ready tasks of each type one resolver pass may
// return. Truncation keeps the earliest-sequence tasks and never reorders.
type BatchCaps struct {
	AI    int
	Human int
	HITL  int
}

// DefaultBatchCaps returns the standard 2/1/1 caps.
func DefaultBatchCaps() BatchCaps {
	return BatchCaps{AI: DefaultAICap, Human: DefaultHumanCap, HITL: DefaultHITLCap}
}

// For returns the cap for a task type. Unknown types get no allowance.
func (c BatchCaps) For(taskType models.TaskType) int {
	switch taskType {
	case models.TaskTypeAI:
		return c.AI
	case models.TaskTypeHuman:
		return c.Human
	case models.TaskTypeHITL:
		return c.HITL
	default:
		return 0
	}
}
