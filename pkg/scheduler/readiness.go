// Package scheduler decides which tasks are eligible for the next
// orchestration pass and bounds how many are handed out per task type.
package scheduler

import (
	"sort"

	"github.com/projectpulse/pulse/pkg/models"
)

// Resolver computes readiness over a project's task set. Readiness is
// always derived from the task statuses passed in; nothing is cached.
type Resolver struct {
	caps BatchCaps
}

// NewResolver creates a resolver with the given per-type batch caps.
func NewResolver(caps BatchCaps) *Resolver {
	return &Resolver{caps: caps}
}

// ReadyTasks returns the pending tasks whose dependencies are all
// completed, grouped by type, ordered by sequence ascending (nil sequences
// last, task ID as tie-break), and truncated to the per-type batch caps.
//
// A dependency on a missing or never-completing task makes the dependent
// task unready indefinitely; the resolver reports no error for a blocked
// graph.
func (r *Resolver) ReadyTasks(tasks []*models.Task) []*models.Task {
	completed := make(map[string]bool, len(tasks))

	for _, task := range tasks {
		if task.Status == models.TaskStatusCompleted {
			completed[task.ID] = true
		}
	}

	groups := map[models.TaskType][]*models.Task{}

	for _, task := range tasks {
		if task.Status != models.TaskStatusPending {
			continue
		}

		if !dependenciesSatisfied(task, completed) {
			continue
		}

		groups[task.Type] = append(groups[task.Type], task)
	}

	ready := make([]*models.Task, 0)

	for _, taskType := range []models.TaskType{models.TaskTypeAI, models.TaskTypeHuman, models.TaskTypeHITL} {
		group := groups[taskType]
		sortBySequence(group)

		if limit := r.caps.For(taskType); len(group) > limit {
			group = group[:limit]
		}

		ready = append(ready, group...)
	}

	return ready
}

func dependenciesSatisfied(task *models.Task, completed map[string]bool) bool {
	for _, dep := range task.Dependencies {
		if !completed[dep] {
			return false
		}
	}

	return true
}

func sortBySequence(tasks []*models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].Sequence, tasks[j].Sequence

		switch {
		case a == nil && b == nil:
			return tasks[i].ID < tasks[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		default:
			return tasks[i].ID < tasks[j].ID
		}
	})
}
