package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE projects (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				orchestration_status VARCHAR(50) NOT NULL DEFAULT 'not_started',
				orchestration_started_at TIMESTAMP WITH TIME ZONE,
				orchestration_completed_at TIMESTAMP WITH TIME ZONE,
				last_execution_id VARCHAR(255) NOT NULL DEFAULT '',
				total_orchestration_runs INT NOT NULL DEFAULT 0,
				orchestration_metadata JSONB NOT NULL DEFAULT '{}',
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_projects_status ON projects(status);
			CREATE INDEX idx_projects_orchestration_status ON projects(orchestration_status);
			CREATE INDEX idx_projects_deleted_at ON projects(deleted_at);

			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				task_type VARCHAR(20) NOT NULL CHECK (task_type IN ('ai', 'human', 'hitl')),
				status VARCHAR(50) NOT NULL,
				dependencies JSONB NOT NULL DEFAULT '[]',
				sequence INT,
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_project_id ON tasks(project_id);
			CREATE INDEX idx_tasks_status ON tasks(status);
			CREATE INDEX idx_tasks_project_status ON tasks(project_id, status);
		`,
	}
}
