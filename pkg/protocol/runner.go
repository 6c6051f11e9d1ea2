// Package protocol defines the interfaces between the planning/execution
// core and its external collaborators. The core never depends on how a
// capability is actually carried out, only on these contracts.
package protocol

import (
	"context"

	"github.com/opsweep/opsweep/pkg/models"
)

// ExecResult is the raw outcome of one capability execution. A zero exit
// code means success.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// CapabilityRunner executes a single capability with its arguments. The
// executor routes user, automation and full_disk_access capabilities to the
// standard runner and elevated capabilities to a privileged runner that may
// prompt for authorization.
type CapabilityRunner interface {
	Execute(ctx context.Context, capability models.Capability, arguments map[string]string) (ExecResult, error)
}
