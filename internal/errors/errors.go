package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Stump error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrKindMismatch        ErrorCode = "KIND_MISMATCH"
	ErrAlreadyExists       ErrorCode = "ALREADY_EXISTS"
	ErrRepositoryFrozen    ErrorCode = "REPOSITORY_FROZEN"
	ErrRepositoryNotFrozen ErrorCode = "REPOSITORY_NOT_FROZEN"
	ErrNoProject           ErrorCode = "NO_PROJECT"
	ErrNoParameters        ErrorCode = "NO_PARAMETERS"
	ErrUnexpectedNode      ErrorCode = "UNEXPECTED_NODE"
	ErrUnsupportedFlavor   ErrorCode = "UNSUPPORTED_FLAVOR"
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"
	ErrIO                  ErrorCode = "IO"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrCancelled           ErrorCode = "CANCELLED"
	ErrInternal            ErrorCode = "INTERNAL"
)

// StumpError represents a structured error with code, message, and details.
type StumpError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *StumpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StumpError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates an error for a malformed argument.
func NewInvalidRequest(msg string) *StumpError {
	return &StumpError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewKindMismatch creates an error for an asset re-registered under a different kind.
func NewKindMismatch(path, existing, requested string) *StumpError {
	return &StumpError{
		Code:    ErrKindMismatch,
		Message: fmt.Sprintf("asset %s already registered as %s, requested %s", path, existing, requested),
		Details: map[string]any{"path": path, "existing": existing, "requested": requested},
	}
}

// NewAlreadyExists creates an error for a duplicate record.
func NewAlreadyExists(id string) *StumpError {
	return &StumpError{
		Code:    ErrAlreadyExists,
		Message: fmt.Sprintf("already exists: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewRepositoryFrozen creates an error for a mutation attempted after Freeze.
func NewRepositoryFrozen(op string) *StumpError {
	return &StumpError{
		Code:    ErrRepositoryFrozen,
		Message: fmt.Sprintf("%s: asset repository is frozen", op),
		Details: map[string]any{"operation": op},
	}
}

// NewRepositoryNotFrozen creates an error for a read attempted before Freeze.
func NewRepositoryNotFrozen(op string) *StumpError {
	return &StumpError{
		Code:    ErrRepositoryNotFrozen,
		Message: fmt.Sprintf("%s: asset repository is not frozen yet", op),
		Details: map[string]any{"operation": op},
	}
}

// NewNoProject creates an error for a task without an owning project.
func NewNoProject(task string) *StumpError {
	return &StumpError{
		Code:    ErrNoProject,
		Message: fmt.Sprintf("task %s has no parent project", task),
		Details: map[string]any{"task": task},
	}
}

// NewNoParameters creates an error for a task without a Parameters folder.
func NewNoParameters(task string) *StumpError {
	return &StumpError{
		Code:    ErrNoParameters,
		Message: fmt.Sprintf("task %s has no Parameters folder", task),
		Details: map[string]any{"task": task},
	}
}

// NewUnexpectedNode creates an error for a trace node the reconstruction does not understand.
func NewUnexpectedNode(where, kind, name string) *StumpError {
	return &StumpError{
		Code:    ErrUnexpectedNode,
		Message: fmt.Sprintf("unexpected %s node %q in %s", kind, name, where),
		Details: map[string]any{"where": where, "kind": kind, "name": name},
	}
}

// NewUnsupportedFlavor creates an error for a build flavor with no reconstruction.
func NewUnsupportedFlavor(flavor string) *StumpError {
	return &StumpError{
		Code:    ErrUnsupportedFlavor,
		Message: fmt.Sprintf("build flavor %s is not supported", flavor),
		Details: map[string]any{"flavor": flavor},
	}
}

// NewFileNotFound creates an error for a missing file.
func NewFileNotFound(path string) *StumpError {
	return &StumpError{
		Code:    ErrFileNotFound,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewIO wraps a filesystem failure with the path it happened on.
func NewIO(path string, err error) *StumpError {
	return &StumpError{
		Code:    ErrIO,
		Message: fmt.Sprintf("%s: %v", path, err),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewNotFound creates an error for a missing capture record or asset.
func NewNotFound(identifier string) *StumpError {
	return &StumpError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *StumpError {
	return &StumpError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates an error for unexpected internal errors.
func NewInternal(err error) *StumpError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &StumpError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err, or anything it wraps, is a StumpError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *StumpError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
