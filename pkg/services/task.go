package services

import (
	"context"
	"fmt"

	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
)

// CreateTaskRequest represents the request to create a new task.
type CreateTaskRequest struct {
	Title        string
	Description  string
	Type         models.TaskType
	Dependencies []string
	Sequence     *int
}

// UpdateTaskRequest represents a partial task update. Nil fields are left
// unchanged; a status change goes through the transition table.
type UpdateTaskRequest struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	Dependencies *[]string
	Sequence     *int
}

// Task handles task-related business operations.
type Task struct {
	persistence persistence.Persistence
}

// NewTask creates a new task service.
func NewTask(p persistence.Persistence) *Task {
	return &Task{persistence: p}
}

// Create adds a task to a project. Dependencies must reference existing
// tasks of the same project and must not introduce a cycle; a cyclic graph
// would silently starve every task on it, so it is rejected up front.
func (s *Task) Create(ctx context.Context, projectID string, req *CreateTaskRequest) (*models.Task, error) {
	if req == nil {
		return nil, ErrTaskNil
	}

	if !models.ValidTaskType(req.Type) {
		return nil, NewValidationError("CreateTask", "invalid_task_type",
			fmt.Sprintf("unknown task type %q", req.Type), ErrInvalidTaskType)
	}

	_, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	siblings, err := s.persistence.TaskRepository().GetByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ProjectID:    projectID,
		Title:        req.Title,
		Description:  req.Description,
		Type:         req.Type,
		Status:       models.TaskStatusPending,
		Dependencies: req.Dependencies,
		Sequence:     req.Sequence,
	}

	err = validateDependencies(task, siblings)
	if err != nil {
		return nil, err
	}

	err = s.persistence.TaskRepository().Save(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// FetchByID returns a single task.
func (s *Task) FetchByID(ctx context.Context, id string) (*models.Task, error) {
	return s.persistence.TaskRepository().GetByID(ctx, id)
}

// ListByProject returns all tasks of a project.
func (s *Task) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	_, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return s.persistence.TaskRepository().GetByProject(ctx, projectID)
}

// Update applies a partial update. Dependency changes are re-checked for
// unknown references and cycles; status changes go through the transition
// table and leave the task untouched when illegal.
func (s *Task) Update(ctx context.Context, id string, req *UpdateTaskRequest) (*models.Task, error) {
	if req == nil {
		return nil, ErrTaskNil
	}

	task, err := s.persistence.TaskRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}

	if req.Description != nil {
		task.Description = *req.Description
	}

	if req.Sequence != nil {
		task.Sequence = req.Sequence
	}

	if req.Dependencies != nil {
		task.Dependencies = *req.Dependencies

		siblings, err := s.persistence.TaskRepository().GetByProject(ctx, task.ProjectID)
		if err != nil {
			return nil, err
		}

		err = validateDependencies(task, siblings)
		if err != nil {
			return nil, err
		}
	}

	if req.Status != nil {
		err = models.TransitionTask(task, *req.Status)
		if err != nil {
			return nil, err
		}
	}

	err = s.persistence.TaskRepository().Save(ctx, task)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// Delete removes a task.
func (s *Task) Delete(ctx context.Context, id string) error {
	return s.persistence.TaskRepository().Delete(ctx, id)
}

// validateDependencies checks that every dependency of the (new or
// updated) task exists in the same project and that the resulting graph
// stays acyclic. siblings is the project's current task set; a task with
// the same ID in siblings is replaced by the updated one.
func validateDependencies(task *models.Task, siblings []*models.Task) error {
	graph := make(map[string][]string, len(siblings)+1)

	for _, sibling := range siblings {
		if task.ID != "" && sibling.ID == task.ID {
			continue
		}

		graph[sibling.ID] = sibling.Dependencies
	}

	newID := task.ID
	if newID == "" {
		// Not yet persisted; any placeholder outside the sibling ID space works.
		newID = "__candidate__"
	}

	graph[newID] = task.Dependencies

	for _, dep := range task.Dependencies {
		if _, exists := graph[dep]; !exists {
			return NewValidationError("ValidateDependencies", "unknown_dependency",
				fmt.Sprintf("dependency %q does not exist in project %s", dep, task.ProjectID),
				ErrUnknownDependency)
		}
	}

	if hasCycle(graph) {
		return NewValidationError("ValidateDependencies", "dependency_cycle",
			"task dependencies form a cycle", ErrDependencyCycle)
	}

	return nil
}

// hasCycle runs Kahn's algorithm over the dependency graph.
func hasCycle(graph map[string][]string) bool {
	indegree := make(map[string]int, len(graph))
	for id := range graph {
		indegree[id] = 0
	}

	for _, deps := range graph {
		for _, dep := range deps {
			if _, exists := graph[dep]; exists {
				indegree[dep]++
			}
		}
	}

	queue := make([]string, 0, len(graph))

	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, dep := range graph[id] {
			if _, exists := graph[dep]; !exists {
				continue
			}

			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	return visited != len(graph)
}
