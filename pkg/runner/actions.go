package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/opsweep/opsweep/pkg/protocol"
)

// ShellActions implements protocol.SystemActions with local shell commands.
type ShellActions struct {
	timeout time.Duration
	logger  *slog.Logger
}

type ActionsOption func(*ShellActions)

func WithActionsTimeout(timeout time.Duration) ActionsOption {
	return func(a *ShellActions) {
		a.timeout = timeout
	}
}

func WithActionsLogger(logger *slog.Logger) ActionsOption {
	return func(a *ShellActions) {
		a.logger = logger
	}
}

func NewShellActions(opts ...ActionsOption) *ShellActions {
	a := &ShellActions{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.With("module", "shell_actions")

	return a
}

var _ protocol.SystemActions = (*ShellActions)(nil)

func (a *ShellActions) run(ctx context.Context, name string, argv ...string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, argv...)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s failed: %w: %s", name, err, stderr.String())
		}

		return fmt.Errorf("%s failed: %w", name, err)
	}

	return nil
}

func (a *ShellActions) CleanMemory(ctx context.Context) error {
	return a.run(ctx, "purge")
}

func (a *ShellActions) CleanCaches(ctx context.Context) error {
	return a.run(ctx, "sh", "-c",
		"find ${HOME}/Library/Caches -mindepth 2 -maxdepth 2 -mtime +7 -delete 2>/dev/null; true")
}

func (a *ShellActions) CleanTemporaryFiles(ctx context.Context) error {
	return a.run(ctx, "sh", "-c", "find ${TMPDIR:-/tmp} -mindepth 1 -mtime +3 -delete 2>/dev/null; true")
}

// CloseBrowserTabs closes Safari background tabs. AppleScript exposes no
// per-tab memory figure, so thresholdMB only gates whether the action fires
// upstream; once dispatched every background tab is closed.
func (a *ShellActions) CloseBrowserTabs(ctx context.Context, thresholdMB int) error {
	a.logger.Debug("Closing browser background tabs", "threshold_mb", thresholdMB)

	return a.run(ctx, "osascript", "-e",
		"tell application \"Safari\" to tell every window to close (every tab whose index is not (index of current tab))")
}

func (a *ShellActions) KillProcess(ctx context.Context, name string) error {
	return a.run(ctx, "pkill", "-x", name)
}

func (a *ShellActions) RunCommand(ctx context.Context, command string) error {
	return a.run(ctx, "sh", "-c", command)
}

func (a *ShellActions) Notify(ctx context.Context, title, message string) error {
	script := fmt.Sprintf("display notification %q with title %q", message, title)

	return a.run(ctx, "osascript", "-e", script)
}

func (a *ShellActions) ExecuteScript(ctx context.Context, path string) error {
	return a.run(ctx, "sh", path)
}
