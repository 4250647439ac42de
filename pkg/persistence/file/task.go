package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
)

// TaskRepository handles task-related file operations.
type TaskRepository struct {
	root string
}

// NewTaskRepository creates a new file-backed task repository.
func NewTaskRepository(root string) *TaskRepository {
	return &TaskRepository{root: root}
}

func (r *TaskRepository) dir() string {
	return filepath.Join(r.root, "tasks")
}

func (r *TaskRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewTaskError("GetByID", id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewTaskError("GetByID", id, err)
	}

	var task models.Task

	err = json.Unmarshal(data, &task)
	if err != nil {
		return nil, persistence.NewTaskError("GetByID", id, fmt.Errorf("failed to decode task file: %w", err))
	}

	return &task, nil
}

// GetByProject returns every task belonging to the given project.
func (r *TaskRepository) GetByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*models.Task{}, nil
		}

		return nil, persistence.NewTaskError("GetByProject", "", err)
	}

	tasks := make([]*models.Task, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		task, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if task.ProjectID == projectID {
			tasks = append(tasks, task)
		}
	}

	return tasks, nil
}

// Save upserts a task, generating a UUIDv7 ID and timestamps when absent.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewTaskError("Save", "", fmt.Errorf("failed to generate task ID: %w", err))
		}

		task.ID = id.String()
	}

	err := os.MkdirAll(r.dir(), 0o755)
	if err != nil {
		return persistence.NewTaskError("Save", task.ID, err)
	}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return persistence.NewTaskError("Save", task.ID, err)
	}

	err = os.WriteFile(r.path(task.ID), data, 0o600)
	if err != nil {
		return persistence.NewTaskError("Save", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	err := os.Remove(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewTaskError("Delete", id, persistence.ErrTaskNotFound)
		}

		return persistence.NewTaskError("Delete", id, err)
	}

	return nil
}
