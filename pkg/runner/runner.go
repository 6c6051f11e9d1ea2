// Package runner executes catalog capabilities as local processes. Each
// capability id maps to an argv template; arguments fill {placeholder}
// slots.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/protocol"
)

// ErrNoCommand indicates the runner has no command template for a
// capability id.
var ErrNoCommand = errors.New("no command registered for capability")

// DefaultTimeout bounds a single spawned process. The execution engine
// imposes no per-step deadline of its own; this guard lives at the exec
// boundary only, and WithTimeout adjusts it.
const DefaultTimeout = 2 * time.Minute

// ExecRunner implements protocol.CapabilityRunner with os/exec.
type ExecRunner struct {
	commands map[string][]string
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*ExecRunner)

func WithTimeout(timeout time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecRunner) {
		r.logger = logger
	}
}

// WithCommands replaces the command table. Used by tests and by the
// privileged runner wrapper.
func WithCommands(commands map[string][]string) Option {
	return func(r *ExecRunner) {
		r.commands = commands
	}
}

func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		commands: darwinCommands(),
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.With("module", "exec_runner")

	return r
}

var _ protocol.CapabilityRunner = (*ExecRunner)(nil)

func (r *ExecRunner) Execute(ctx context.Context, capability models.Capability, arguments map[string]string) (protocol.ExecResult, error) {
	template, ok := r.commands[capability.ID]
	if !ok {
		return protocol.ExecResult{}, fmt.Errorf("%w: %s", ErrNoCommand, capability.ID)
	}

	argv := expand(template, arguments)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Debug("Executing capability", "capability_id", capability.ID, "argv", argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := protocol.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()

			return result, nil
		}

		return protocol.ExecResult{}, fmt.Errorf("capability %s failed to start: %w", capability.ID, err)
	}

	return result, nil
}

// expand substitutes {key} placeholders in every argv element from the
// arguments map. Unmatched placeholders are left as-is.
func expand(template []string, arguments map[string]string) []string {
	argv := make([]string, len(template))

	for i, part := range template {
		for key, value := range arguments {
			part = strings.ReplaceAll(part, "{"+key+"}", value)
		}

		argv[i] = part
	}

	return argv
}
