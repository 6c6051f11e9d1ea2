package planner

import (
	"errors"
	"fmt"
)

// Planner failures are typed and fail closed: there is no best-effort or
// fallback plan. Callers surface these with a recovery suggestion such as
// rephrasing the request more simply.
var (
	// ErrInvalidJSONResponse indicates the backend's text could not be
	// turned into a structurally valid plan.
	ErrInvalidJSONResponse = errors.New("generation response is not a valid workflow plan")

	// ErrEmptyWorkflow indicates the decoded plan contains no steps.
	ErrEmptyWorkflow = errors.New("workflow plan is empty")

	// ErrWorkflowTooLong indicates the decoded plan exceeds the step limit.
	ErrWorkflowTooLong = errors.New("workflow plan exceeds the maximum number of steps")
)

// InvalidCapabilityError indicates a plan step references a capability id
// that does not exist in the catalog.
type InvalidCapabilityError struct {
	ID string
}

func (e *InvalidCapabilityError) Error() string {
	return fmt.Sprintf("plan references unknown capability %q", e.ID)
}

// IsInvalidCapability checks whether err is an unknown-capability failure.
func IsInvalidCapability(err error) bool {
	var invalidErr *InvalidCapabilityError

	return errors.As(err, &invalidErr)
}
