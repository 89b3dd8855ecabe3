package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - bad client input such as an unsupported MIME type or missing file content (400, turn not started)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrConflict - a turn is already in flight for the session, or a resource already exists
	ErrConflict = errors.New("conflict")

	// ErrUnknownTool - the model asked for a tool that is not registered (turn fails)
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateTool - a tool with the same name is already registered
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrInvalidArguments - tool arguments do not satisfy the declared schema (fed back to the model)
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrToolExecution - tool implementation failed (fed back to the model)
	ErrToolExecution = errors.New("tool execution failed")

	// ErrProvider - model backend unreachable or rejected the request (not retried)
	ErrProvider = errors.New("provider error")

	// ErrStepBudgetExceeded - turn used all of its model invocations without a final answer
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrTurnTimeout - per-turn deadline expired
	ErrTurnTimeout = errors.New("turn timeout")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
