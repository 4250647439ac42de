// Package gemini implements the generation engine on Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/projectpulse/pulse/pkg/generation"
)

// Config holds engine configuration.
type Config struct {
	APIKey string
	Model  string
}

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Engine calls Gemini to break a project description into typed tasks with
// dependencies. The response is requested as JSON and decoded into the
// generation result; structural validation happens in the coordinator.
type Engine struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewEngine creates a Gemini-backed generation engine.
func NewEngine(ctx context.Context, config Config, logger *slog.Logger) (*Engine, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Engine{
		client: client,
		model:  config.Model,
		logger: logger,
	}, nil
}

const promptTemplate = `You are a project planner. Break the following project into tasks.

Project context:
%s

%s

Respond with a single JSON object of this shape and nothing else:
{
  "tasks": [
    {"key": "short-stable-key", "title": "...", "description": "...",
     "type": "ai" | "human" | "hitl", "estimated_hours": 0}
  ],
  "dependencies": [
    {"task": "key", "depends_on": "key"}
  ],
  "metadata": {
    "ai_tasks": 0, "human_tasks": 0, "hitl_tasks": 0, "total_estimated_hours": 0
  }
}

Rules: 3 to 12 tasks; "ai" for work an automated agent can do alone,
"human" for work a person must do, "hitl" for automated work needing a
human approval step; dependency keys must reference listed tasks; no
dependency cycles.`

// Generate issues one synchronous Gemini call. Retries belong to the
// polling client, not this engine.
func (e *Engine) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	if strings.TrimSpace(req.Context) == "" {
		return nil, errors.New("generation request context cannot be empty")
	}

	prompt := fmt.Sprintf(promptTemplate, req.Context, e.priorAnalysisSection(req))

	e.logger.InfoContext(ctx, "calling gemini for task generation",
		"project_id", req.ProjectID,
		"model", e.model)

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini call failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.New("gemini returned an empty response")
	}

	var result generation.Result

	err = json.Unmarshal([]byte(text), &result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}

	e.logger.InfoContext(ctx, "gemini generation finished",
		"project_id", req.ProjectID,
		"tasks", len(result.Tasks))

	return &result, nil
}

func (e *Engine) priorAnalysisSection(req generation.Request) string {
	if len(req.PriorAnalysis) == 0 {
		return ""
	}

	analysis, err := json.Marshal(req.PriorAnalysis)
	if err != nil {
		return ""
	}

	return "Prior analysis:\n" + string(analysis)
}
