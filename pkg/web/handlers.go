// Package web provides HTTP handlers and REST API endpoints for project
// orchestration.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/projectpulse/pulse/pkg/generation"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/orchestration"
	"github.com/projectpulse/pulse/pkg/services"
)

type APIHandlers struct {
	projectService *services.Project
	taskService    *services.Task
	ingestor       *services.CallbackIngestor
	orchestrator   *orchestration.Orchestrator
	coordinator    *generation.Coordinator
	validator      *validator.Validate
}

func NewAPIHandlers(
	projectService *services.Project,
	taskService *services.Task,
	ingestor *services.CallbackIngestor,
	orchestrator *orchestration.Orchestrator,
	coordinator *generation.Coordinator,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		projectService: projectService,
		taskService:    taskService,
		ingestor:       ingestor,
		orchestrator:   orchestrator,
		coordinator:    coordinator,
		validator:      validator,
	}
}

// Register mounts every route on the app. The cmd wiring and the tests
// share this so they cannot drift apart.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	p := app.Group("/projects")
	p.Get("/", h.GetProjects)
	p.Post("/", h.CreateProject)
	p.Get("/:id", h.GetProject)
	p.Patch("/:id", h.UpdateProject)
	p.Delete("/:id", h.DeleteProject)
	p.Post("/:id/trigger", h.TriggerProject)
	p.Get("/:id/ready-tasks", h.GetReadyTasks)
	p.Post("/:id/tasks", h.CreateTask)
	p.Get("/:id/tasks", h.GetProjectTasks)

	t := app.Group("/tasks")
	t.Get("/:id", h.GetTask)
	t.Patch("/:id", h.UpdateTask)
	t.Delete("/:id", h.DeleteTask)
	t.Post("/:id/status", h.UpdateTaskStatus)
	t.Put("/:id/status", h.UpdateTaskStatus)

	app.Post("/orchestration/callback", h.OrchestrationCallback)

	g := app.Group("/generation")
	g.Post("/:sessionId/start", h.StartGeneration)
	g.Get("/:sessionId", h.PollGeneration)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.projectService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Pulse API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Pulse API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetProjects(c fiber.Ctx) error {
	projects, err := h.projectService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(projects)
}

func (h *APIHandlers) CreateProject(c fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	project := &models.Project{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
	}

	created, err := h.projectService.Create(c.Context(), project)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetProject(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Project ID is required")
	}

	project, err := h.projectService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}

func (h *APIHandlers) UpdateProject(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Project ID is required")
	}

	var req UpdateProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	project, err := h.projectService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		project.Name = *req.Name
	}

	if req.Description != nil {
		project.Description = *req.Description
	}

	project, err = h.projectService.Update(c.Context(), project)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Status != nil {
		project, err = h.projectService.UpdateStatus(c.Context(), id, *req.Status)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	if req.Orchestration != nil {
		switch *req.Orchestration {
		case "pause":
			project, err = h.projectService.Pause(c.Context(), id)
		case "resume":
			project, err = h.projectService.Resume(c.Context(), id)
		}

		if err != nil {
			return handleServiceError(c, err)
		}
	}

	return c.JSON(project)
}

func (h *APIHandlers) DeleteProject(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Project ID is required")
	}

	err := h.projectService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TriggerProject is the manual re-trigger endpoint. It runs a full
// orchestration pass; "triggered: false" means the pass decided there was
// nothing to do (paused project, no ready tasks, already complete) or the
// runner call failed.
func (h *APIHandlers) TriggerProject(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Project ID is required")
	}

	triggered, err := h.orchestrator.RunPass(c.Context(), id, orchestration.TriggerSourceManual)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"project_id": id,
		"triggered":  triggered,
	})
}

func (h *APIHandlers) GetReadyTasks(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Project ID is required")
	}

	if _, err := h.projectService.FetchByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	ready, err := h.orchestrator.ReadyTasks(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"project_id":  id,
		"ready_tasks": ready,
	})
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	projectID := c.Params("id")
	if projectID == "" {
		return badRequest(c, "Project ID is required")
	}

	var req CreateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.taskService.Create(c.Context(), projectID, &services.CreateTaskRequest{
		Title:        req.Title,
		Description:  req.Description,
		Type:         req.Type,
		Dependencies: req.Dependencies,
		Sequence:     req.Sequence,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *APIHandlers) GetProjectTasks(c fiber.Ctx) error {
	projectID := c.Params("id")
	if projectID == "" {
		return badRequest(c, "Project ID is required")
	}

	tasks, err := h.taskService.ListByProject(c.Context(), projectID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(tasks)
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	task, err := h.taskService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) UpdateTask(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	var req UpdateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.taskService.Update(c.Context(), id, &services.UpdateTaskRequest{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Dependencies: req.Dependencies,
		Sequence:     req.Sequence,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) DeleteTask(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	err := h.taskService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateTaskStatus receives a runner status notification for one task.
func (h *APIHandlers) UpdateTaskStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	var req services.TaskStatusUpdateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	status, err := h.ingestor.UpdateTaskStatus(c.Context(), id, &req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"task_id": id,
		"status":  status,
	})
}

// OrchestrationCallback receives the workflow runner's completion callback
// and continues the orchestration loop.
func (h *APIHandlers) OrchestrationCallback(c fiber.Ctx) error {
	var req services.CallbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	task, err := h.ingestor.IngestCallback(c.Context(), &req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"project_id": req.ProjectID,
		"task_id":    task.ID,
	})
}

func (h *APIHandlers) StartGeneration(c fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return badRequest(c, "Session ID is required")
	}

	var req StartGenerationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	started, err := h.coordinator.Start(c.Context(), sessionID, generation.Request{
		ProjectID:     req.ProjectID,
		Context:       req.Context,
		PriorAnalysis: req.PriorAnalysis,
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"started":    started,
	})
}

func (h *APIHandlers) PollGeneration(c fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return badRequest(c, "Session ID is required")
	}

	resp, err := h.coordinator.Poll(c.Context(), sessionID, generation.Request{
		ProjectID: c.Query("project_id"),
		Context:   c.Query("context"),
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(resp)
}
