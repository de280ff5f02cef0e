// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrKeywordNotFound indicates a keyword was not found by the given identifier.
	ErrKeywordNotFound = errors.New("keyword not found")

	// ErrClusterNotFound indicates no clusters exist for the given hub.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrApprovalNotFound indicates no approval record exists for the key.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrInvalidWorkflowStatus indicates an invalid workflow status was provided.
	ErrInvalidWorkflowStatus = errors.New("invalid workflow status")
)

// WorkflowError wraps workflow-related errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "UpdateStatus")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// KeywordError wraps keyword-related errors with operation context.
type KeywordError struct {
	Op        string
	KeywordID string
	Err       error
}

func (e *KeywordError) Error() string {
	return fmt.Sprintf("%s operation failed for keyword %s: %v", e.Op, e.KeywordID, e.Err)
}

func (e *KeywordError) Unwrap() error {
	return e.Err
}

func (e *KeywordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsKeywordNotFound checks if an error indicates a keyword was not found.
func IsKeywordNotFound(err error) bool {
	return errors.Is(err, ErrKeywordNotFound)
}

// IsApprovalNotFound checks if an error indicates no approval record exists.
func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}

// IsNotFound checks for any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsKeywordNotFound(err) ||
		errors.Is(err, ErrClusterNotFound) || IsApprovalNotFound(err)
}
