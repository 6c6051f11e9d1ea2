package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound indicates no scheduled task exists for the given id.
	ErrTaskNotFound = errors.New("scheduled task not found")

	// ErrRuleNotFound indicates no automation rule exists for the given id.
	ErrRuleNotFound = errors.New("automation rule not found")
)

// StoreError wraps storage failures with the operation and entity involved.
type StoreError struct {
	Op       string
	EntityID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}
