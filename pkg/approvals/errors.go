package approvals

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the actor lacks the admin or owner
	// role, or belongs to a different organization than the entity.
	ErrForbidden = errors.New("actor may not approve this entity")

	// ErrWrongState is returned when the entity is not in the pre-approval
	// state the decision requires.
	ErrWrongState = errors.New("entity is not in an approvable state")

	// ErrUnknownApprovalType is returned for an approval type no processor
	// handles.
	ErrUnknownApprovalType = errors.New("unknown approval type")
)

// ProcessError gives approval failures operation context.
type ProcessError struct {
	Op       string
	EntityID string
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("approvals: %s %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newProcessError(op, entityID string, err error) *ProcessError {
	return &ProcessError{Op: op, EntityID: entityID, Err: err}
}

// IsForbidden checks whether an error is an authorization rejection.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsWrongState checks whether an error is a pre-approval state violation.
func IsWrongState(err error) bool {
	return errors.Is(err, ErrWrongState)
}
