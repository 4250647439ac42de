// Package file provides JSON-file persistence used by unit tests and local
// development. Projects and tasks live as one document per entity under the
// root directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/projectpulse/pulse/pkg/persistence"
)

// Persistence implements the persistence layer on top of the local
// filesystem.
type Persistence struct {
	root        string
	projectRepo *ProjectRepository
	taskRepo    *TaskRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory, creating it when missing.
func NewPersistence(root string) *Persistence {
	taskRepo := NewTaskRepository(root)

	return &Persistence{
		root:        root,
		projectRepo: NewProjectRepository(root, taskRepo),
		taskRepo:    taskRepo,
	}
}

func (p *Persistence) ProjectRepository() persistence.ProjectRepository {
	return p.projectRepo
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

// HealthCheck verifies the root directory is writable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(p.root, 0o755)
	if err != nil {
		return fmt.Errorf("failed to access storage root: %w", err)
	}

	probe := filepath.Join(p.root, ".healthcheck")

	err = os.WriteFile(probe, []byte("ok"), 0o600)
	if err != nil {
		return fmt.Errorf("storage root is not writable: %w", err)
	}

	return os.Remove(probe)
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
