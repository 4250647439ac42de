// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/projectpulse/pulse/pkg/models"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInvalidTaskType        = errors.New("invalid task type")
	ErrInvalidRunnerStatus    = errors.New("invalid runner status")
	ErrInvalidProgress        = errors.New("progress must be between 0 and 100")
	ErrDependencyCycle        = errors.New("task dependencies form a cycle")
	ErrUnknownDependency      = errors.New("dependency references an unknown task")
	ErrCrossProjectDependency = errors.New("dependency references a task in another project")
	ErrProjectMismatch        = errors.New("task does not belong to the given project")
	ErrProjectNil             = errors.New("project cannot be nil")
	ErrTaskNil                = errors.New("task cannot be nil")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	var transitionErr *models.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return true
	}

	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidTaskType) ||
		errors.Is(err, ErrInvalidRunnerStatus) ||
		errors.Is(err, ErrInvalidProgress) ||
		errors.Is(err, ErrDependencyCycle) ||
		errors.Is(err, ErrUnknownDependency) ||
		errors.Is(err, ErrCrossProjectDependency) ||
		errors.Is(err, ErrProjectMismatch) ||
		errors.Is(err, ErrProjectNil) ||
		errors.Is(err, ErrTaskNil)
}
