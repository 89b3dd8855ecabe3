package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorMapper maps external errors to the service error taxonomy
type ErrorMapper interface {
	MapError(err error) error
	Category(err error) string
}

// DefaultErrorMapper implements the service error taxonomy mapping
type DefaultErrorMapper struct{}

// NewDefaultErrorMapper creates a new error mapper
func NewDefaultErrorMapper() *DefaultErrorMapper {
	return &DefaultErrorMapper{}
}

// MapError maps errors returned by third-party clients onto the taxonomy.
// Errors that already carry a category are returned unchanged.
func (m *DefaultErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if Category(err) != CategoryUnknown {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTurnTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"), strings.Contains(msg, "no such"):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case strings.Contains(msg, "invalid input"), strings.Contains(msg, "bad request"):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case strings.Contains(msg, "conflict"), strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}

// Category returns the category name for an error
func (m *DefaultErrorMapper) Category(err error) string {
	return Category(err)
}

// Category names reported on error events and in logs.
const (
	CategoryInvalidInput       = "invalid_input"
	CategoryNotFound           = "not_found"
	CategoryConflict           = "conflict"
	CategoryUnknownTool        = "unknown_tool"
	CategoryDuplicateTool      = "duplicate_tool"
	CategoryInvalidArguments   = "invalid_arguments"
	CategoryToolExecution      = "tool_execution"
	CategoryProvider           = "provider"
	CategoryStepBudgetExceeded = "step_budget_exceeded"
	CategoryTurnTimeout        = "timeout"
	CategoryInternal           = "internal"
	CategoryUnknown            = "unknown"
)

// Category returns the category name for an error, or "" for nil.
func Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStepBudgetExceeded):
		return CategoryStepBudgetExceeded
	case errors.Is(err, ErrTurnTimeout):
		return CategoryTurnTimeout
	case errors.Is(err, ErrUnknownTool):
		return CategoryUnknownTool
	case errors.Is(err, ErrDuplicateTool):
		return CategoryDuplicateTool
	case errors.Is(err, ErrInvalidArguments):
		return CategoryInvalidArguments
	case errors.Is(err, ErrToolExecution):
		return CategoryToolExecution
	case errors.Is(err, ErrProvider):
		return CategoryProvider
	case errors.Is(err, ErrInvalidInput):
		return CategoryInvalidInput
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrConflict):
		return CategoryConflict
	case errors.Is(err, ErrInternal):
		return CategoryInternal
	default:
		return CategoryUnknown
	}
}

// HTTPStatus maps an error to the status code the HTTP transport answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory wraps an error with a category while keeping the cause in the chain
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w: %w", message, category, err)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Conflict wraps error as conflict
func Conflict(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConflict)
}

// Internal wraps error as internal
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// UnknownTool reports a tool name that is not registered
func UnknownTool(name string) error {
	return fmt.Errorf("tool %q: %w", name, ErrUnknownTool)
}

// DuplicateTool reports a second registration of the same name
func DuplicateTool(name string) error {
	return fmt.Errorf("tool %q already registered: %w", name, ErrDuplicateTool)
}

// InvalidArguments reports a schema mismatch for a tool invocation
func InvalidArguments(name string, cause error) error {
	return fmt.Errorf("tool %q: %w: %w", name, ErrInvalidArguments, cause)
}

// ToolExecution wraps the failure of a tool implementation
func ToolExecution(name string, cause error) error {
	return fmt.Errorf("tool %q: %w: %w", name, ErrToolExecution, cause)
}

// Provider wraps a model backend failure
func Provider(provider string, cause error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrProvider, cause)
}

// StepBudgetExceeded reports a turn that ran out of model invocations
func StepBudgetExceeded(maxSteps int) error {
	return fmt.Errorf("no final answer after %d model calls: %w", maxSteps, ErrStepBudgetExceeded)
}
