package models

import "fmt"

// InvalidTransitionError is returned when a status change is not in the
// transition table. The subject is left untouched.
type InvalidTransitionError struct {
	Subject string // "task" or "project orchestration"
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition %s from %s to %s", e.Subject, e.From, e.To)
}

// taskTransitions is the canonical task status transition table. The source
// system carried a second, narrower table without review/cancelled; every
// transition legal under that variant is legal here, so the wide table is
// the reconciled canonical one.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusGenerated:  {TaskStatusPending, TaskStatusInProgress},
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusBlocked, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusReview, TaskStatusCompleted, TaskStatusBlocked, TaskStatusPending, TaskStatusCancelled},
	TaskStatusReview:     {TaskStatusInProgress, TaskStatusCompleted, TaskStatusPending},
	TaskStatusBlocked:    {TaskStatusPending, TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusCompleted:  {TaskStatusInProgress}, // Reopen only
	TaskStatusCancelled:  {TaskStatusPending},    // Un-cancel only
}

// CanTransitionTask reports whether a task may move from one status to
// another. A no-op transition (from == to) is always allowed.
func CanTransitionTask(from, to TaskStatus) bool {
	if from == to {
		return true
	}

	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// TransitionTask applies a status change to the task after checking the
// transition table. On an illegal transition the task is not mutated.
func TransitionTask(task *Task, to TaskStatus) error {
	if !CanTransitionTask(task.Status, to) {
		return &InvalidTransitionError{
			Subject: "task",
			From:    string(task.Status),
			To:      string(to),
		}
	}

	task.Status = to

	return nil
}

// orchestrationTransitions guards the project orchestration machine.
// running -> completed is reserved for the completion tracker; the
// completed -> running edge covers a completed project whose task is
// reopened.
var orchestrationTransitions = map[OrchestrationStatus][]OrchestrationStatus{
	OrchestrationNotStarted: {OrchestrationRunning},
	OrchestrationRunning:    {OrchestrationCompleted, OrchestrationPaused, OrchestrationFailed},
	OrchestrationPaused:     {OrchestrationRunning, OrchestrationFailed},
	OrchestrationCompleted:  {OrchestrationRunning},
	OrchestrationFailed:     {OrchestrationRunning},
}

// CanTransitionOrchestration reports whether a project's orchestration
// status may move from one state to another.
func CanTransitionOrchestration(from, to OrchestrationStatus) bool {
	if from == to {
		return true
	}

	for _, allowed := range orchestrationTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// TransitionOrchestration applies an orchestration status change after
// checking the table. On an illegal transition the project is not mutated.
func TransitionOrchestration(project *Project, to OrchestrationStatus) error {
	if !CanTransitionOrchestration(project.OrchestrationStatus, to) {
		return &InvalidTransitionError{
			Subject: "project orchestration",
			From:    string(project.OrchestrationStatus),
			To:      string(to),
		}
	}

	project.OrchestrationStatus = to

	return nil
}
