// Package automation runs scheduled and trigger-driven maintenance actions
// against the system collaborators.
package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/protocol"
)

// ActionRunner dispatches one automation action to the matching collaborator
// call.
type ActionRunner struct {
	actions protocol.SystemActions
	logger  *slog.Logger
}

func NewActionRunner(actions protocol.SystemActions, logger *slog.Logger) *ActionRunner {
	return &ActionRunner{
		actions: actions,
		logger:  logger.With("module", "action_runner"),
	}
}

// Run executes a single action. The action must already be validated.
func (r *ActionRunner) Run(ctx context.Context, action models.AutomationAction) error {
	switch action.Kind {
	case models.ActionCleanMemory:
		return r.actions.CleanMemory(ctx)
	case models.ActionCleanCaches:
		return r.actions.CleanCaches(ctx)
	case models.ActionCleanTemporaryFiles:
		return r.actions.CleanTemporaryFiles(ctx)
	case models.ActionCloseBrowserTabs:
		return r.actions.CloseBrowserTabs(ctx, action.ThresholdMB)
	case models.ActionKillProcess:
		return r.actions.KillProcess(ctx, action.Process)
	case models.ActionRunCommand:
		return r.actions.RunCommand(ctx, action.Command)
	case models.ActionNotify:
		return r.actions.Notify(ctx, action.Title, action.Message)
	case models.ActionExecuteScript:
		return r.actions.ExecuteScript(ctx, action.ScriptPath)
	default:
		return fmt.Errorf("%w: unknown kind %q", models.ErrInvalidAction, action.Kind)
	}
}

// RunAll executes actions in order, best effort: a failed action is logged
// and the rest still run. It returns the number of failures.
func (r *ActionRunner) RunAll(ctx context.Context, actions []models.AutomationAction) int {
	failures := 0

	for _, action := range actions {
		if err := r.Run(ctx, action); err != nil {
			r.logger.Error("Automation action failed", "action", action.String(), "error", err)

			failures++
		} else {
			r.logger.Debug("Automation action completed", "action", action.String())
		}
	}

	return failures
}
