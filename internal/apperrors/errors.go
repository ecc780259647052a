// Package apperrors provides sentinel and custom error types for the engine.
package apperrors

import "fmt"

// ErrDimensionMismatch is the sentinel for vector dimension mismatches.
// Mismatched vectors are always rejected, never padded or truncated.
var ErrDimensionMismatch = &DimensionMismatchError{}

// DimensionMismatchError reports a vector whose length differs from the
// system dimension.
type DimensionMismatchError struct {
	Want int
	Got  int
}

// NewDimensionMismatchError creates a DimensionMismatchError.
func NewDimensionMismatchError(want, got int) *DimensionMismatchError {
	return &DimensionMismatchError{Want: want, Got: got}
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	if e.Want != 0 || e.Got != 0 {
		return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Want, e.Got)
	}

	return "vector dimension mismatch"
}

// Is implements the error interface for error comparison.
func (e *DimensionMismatchError) Is(target error) bool {
	_, ok := target.(*DimensionMismatchError)

	return ok
}

// ErrIndexBuild is the sentinel for index build failures.
var ErrIndexBuild = &IndexBuildError{}

// IndexBuildError reports that no usable index could be built, e.g. when the
// source contained zero valid embeddings.
type IndexBuildError struct {
	Message string
}

// NewIndexBuildError creates an IndexBuildError with a custom message.
func NewIndexBuildError(message string) *IndexBuildError {
	return &IndexBuildError{Message: message}
}

// Error implements the error interface.
func (e *IndexBuildError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "index build failed"
}

// Is implements the error interface for error comparison.
func (e *IndexBuildError) Is(target error) bool {
	_, ok := target.(*IndexBuildError)

	return ok
}

// ErrAdaptation is the sentinel for failures inside the profile update
// computation. Callers catch it and keep the prior vector; adaptation never
// corrupts stored state.
var ErrAdaptation = &AdaptationError{}

// AdaptationError reports a failure in the relevance-feedback computation.
type AdaptationError struct {
	Message string
	Cause   error
}

// NewAdaptationError creates an AdaptationError wrapping cause.
func NewAdaptationError(message string, cause error) *AdaptationError {
	return &AdaptationError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *AdaptationError) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return e.Message + ": " + e.Cause.Error()
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return "adaptation failed: " + e.Cause.Error()
	}

	return "adaptation failed"
}

// Unwrap returns the wrapped cause.
func (e *AdaptationError) Unwrap() error {
	return e.Cause
}

// Is implements the error interface for error comparison.
func (e *AdaptationError) Is(target error) bool {
	_, ok := target.(*AdaptationError)

	return ok
}

// ErrStorage is the sentinel for persistence read/write failures. Propagated
// to the immediate caller on single-user paths, counted per user on batch
// paths; never silently swallowed.
var ErrStorage = &StorageError{}

// StorageError reports a persistence failure.
type StorageError struct {
	Op    string
	Cause error
}

// NewStorageError creates a StorageError for the given operation.
func NewStorageError(op string, cause error) *StorageError {
	return &StorageError{Op: op, Cause: cause}
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	switch {
	case e.Op != "" && e.Cause != nil:
		return "storage: " + e.Op + ": " + e.Cause.Error()
	case e.Op != "":
		return "storage: " + e.Op
	case e.Cause != nil:
		return "storage: " + e.Cause.Error()
	}

	return "storage error"
}

// Unwrap returns the wrapped cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is implements the error interface for error comparison.
func (e *StorageError) Is(target error) bool {
	_, ok := target.(*StorageError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{Resource: resource, Message: message}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}
