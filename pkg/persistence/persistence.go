// Package persistence provides the data storage abstraction for projects
// and their tasks.
package persistence

import (
	"context"

	"github.com/projectpulse/pulse/pkg/models"
)

// ProjectRepository stores project aggregates. Save is an upsert; Delete
// cascades to the project's tasks.
type ProjectRepository interface {
	GetAll(ctx context.Context) ([]*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Save(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
}

// TaskRepository stores tasks. Tasks are owned by projects and are only
// ever deleted through their project or explicitly by ID.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
	GetByProject(ctx context.Context, projectID string) ([]*models.Task, error)
	Save(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
}

type Persistence interface {
	ProjectRepository() ProjectRepository
	TaskRepository() TaskRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
