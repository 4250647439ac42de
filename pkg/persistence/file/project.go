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

// ProjectRepository handles project-related file operations.
type ProjectRepository struct {
	root     string
	taskRepo *TaskRepository
}

// NewProjectRepository creates a new file-backed project repository.
func NewProjectRepository(root string, taskRepo *TaskRepository) *ProjectRepository {
	return &ProjectRepository{root: root, taskRepo: taskRepo}
}

func (r *ProjectRepository) dir() string {
	return filepath.Join(r.root, "projects")
}

func (r *ProjectRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

// GetAll returns all projects, soft-deleted ones excluded.
func (r *ProjectRepository) GetAll(ctx context.Context) ([]*models.Project, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*models.Project{}, nil
		}

		return nil, persistence.NewProjectError("GetAll", "", err)
	}

	projects := make([]*models.Project, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		project, err := r.read(filepath.Join(r.dir(), entry.Name()))
		if err != nil {
			return nil, err
		}

		if project.DeletedAt == nil {
			projects = append(projects, project)
		}
	}

	return projects, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	project, err := r.read(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewProjectError("GetByID", id, persistence.ErrProjectNotFound)
		}

		return nil, err
	}

	if project.DeletedAt != nil {
		return nil, persistence.NewProjectError("GetByID", id, persistence.ErrProjectNotFound)
	}

	return project, nil
}

// Save upserts a project, generating a UUIDv7 ID and timestamps when absent.
func (r *ProjectRepository) Save(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()

	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now

	if project.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewProjectError("Save", "", fmt.Errorf("failed to generate project ID: %w", err))
		}

		project.ID = id.String()
	}

	err := os.MkdirAll(r.dir(), 0o755)
	if err != nil {
		return persistence.NewProjectError("Save", project.ID, err)
	}

	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return persistence.NewProjectError("Save", project.ID, err)
	}

	err = os.WriteFile(r.path(project.ID), data, 0o600)
	if err != nil {
		return persistence.NewProjectError("Save", project.ID, err)
	}

	return nil
}

// Delete soft deletes a project and removes its tasks (cascade).
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	project, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	project.DeletedAt = &now

	err = r.Save(ctx, project)
	if err != nil {
		return err
	}

	tasks, err := r.taskRepo.GetByProject(ctx, id)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		err = r.taskRepo.Delete(ctx, task.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ProjectRepository) read(path string) (*models.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var project models.Project

	err = json.Unmarshal(data, &project)
	if err != nil {
		return nil, fmt.Errorf("failed to decode project file %s: %w", path, err)
	}

	return &project, nil
}
