package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/persistence"
)

// ProjectRepository handles project-related database operations.
type ProjectRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *sql.DB, logger *slog.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `
	id
  , name
  , description
  , status
  , orchestration_status
  , orchestration_started_at
  , orchestration_completed_at
  , last_execution_id
  , total_orchestration_runs
  , orchestration_metadata
  , owner
  , created_at
  , updated_at
  , deleted_at
`

// GetAll returns all projects, soft-deleted ones excluded.
func (r *ProjectRepository) GetAll(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	projects := make([]*models.Project, 0)

	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}

		projects = append(projects, project)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewProjectError("GetByID", id, persistence.ErrProjectNotFound)
		}

		return nil, fmt.Errorf("failed to scan project: %w", err)
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
			return fmt.Errorf("failed to generate project ID: %w", err)
		}

		project.ID = id.String()
	}

	metadataJSON, err := json.Marshal(project.OrchestrationMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal orchestration metadata: %w", err)
	}

	query := `
		INSERT INTO projects (
			id, name, description, status, orchestration_status,
			orchestration_started_at, orchestration_completed_at,
			last_execution_id, total_orchestration_runs,
			orchestration_metadata, owner, created_at, updated_at, deleted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			orchestration_status = EXCLUDED.orchestration_status,
			orchestration_started_at = EXCLUDED.orchestration_started_at,
			orchestration_completed_at = EXCLUDED.orchestration_completed_at,
			last_execution_id = EXCLUDED.last_execution_id,
			total_orchestration_runs = EXCLUDED.total_orchestration_runs,
			orchestration_metadata = EXCLUDED.orchestration_metadata,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		string(project.Status),
		string(project.OrchestrationStatus),
		project.OrchestrationStartedAt,
		project.OrchestrationCompletedAt,
		project.LastExecutionID,
		project.TotalOrchestrationRuns,
		metadataJSON,
		project.Owner,
		project.CreatedAt,
		project.UpdatedAt,
		project.DeletedAt,
	)
	if err != nil {
		return persistence.NewProjectError("Save", project.ID, err)
	}

	return nil
}

// Delete soft deletes a project; tasks cascade at the database level once
// the row itself is removed, but soft delete keeps them for audit.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE projects
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewProjectError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewProjectError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewProjectError("Delete", id, persistence.ErrProjectNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		project      models.Project
		metadataJSON []byte
		owner        sql.NullString
	)

	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.Status,
		&project.OrchestrationStatus,
		&project.OrchestrationStartedAt,
		&project.OrchestrationCompletedAt,
		&project.LastExecutionID,
		&project.TotalOrchestrationRuns,
		&metadataJSON,
		&owner,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if owner.Valid {
		project.Owner = owner.String
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &project.OrchestrationMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal orchestration metadata: %w", err)
		}
	}

	return &project, nil
}
