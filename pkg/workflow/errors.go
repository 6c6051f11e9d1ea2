package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExecuting is returned when Execute is called while another
	// run is in flight. The executor runs one workflow at a time.
	ErrAlreadyExecuting = errors.New("executor is already running a workflow")

	// ErrExecutionCancelled is returned alongside the partial result when a
	// run was stopped cooperatively before finishing.
	ErrExecutionCancelled = errors.New("workflow execution cancelled")
)

// CapabilityNotFoundError indicates a plan step referenced a capability id
// the catalog does not hold. Plans are validated before execution, so this
// points at a catalog/plan mismatch.
type CapabilityNotFoundError struct {
	ID string
}

func (e *CapabilityNotFoundError) Error() string {
	return fmt.Sprintf("capability %q not found in catalog", e.ID)
}
