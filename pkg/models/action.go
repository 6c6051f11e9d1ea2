package models

import (
	"errors"
	"fmt"
)

// ActionKind enumerates the closed set of automation actions. Each kind maps
// 1:1 to one collaborator call; there is no open plugin surface here, which
// keeps scheduled tasks and rules serializable and replayable.
type ActionKind string

const (
	ActionCleanMemory         ActionKind = "clean_memory"
	ActionCleanCaches         ActionKind = "clean_caches"
	ActionCleanTemporaryFiles ActionKind = "clean_temporary_files"
	ActionCloseBrowserTabs    ActionKind = "close_browser_tabs"
	ActionKillProcess         ActionKind = "kill_process"
	ActionRunCommand          ActionKind = "run_command"
	ActionNotify              ActionKind = "notify"
	ActionExecuteScript       ActionKind = "execute_script"
)

var ErrInvalidAction = errors.New("invalid automation action")

// AutomationAction is a tagged variant: Kind selects which payload fields
// are meaningful.
type AutomationAction struct {
	Kind ActionKind `json:"kind" validate:"required"`

	// close_browser_tabs: tabs above this memory footprint are closed.
	ThresholdMB int `json:"threshold_mb,omitempty"`

	// kill_process
	Process string `json:"process,omitempty"`

	// run_command
	Command string `json:"command,omitempty"`

	// notify
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`

	// execute_script
	ScriptPath string `json:"script_path,omitempty"`
}

// Validate checks that the payload fields required by the action kind are set.
func (a AutomationAction) Validate() error {
	switch a.Kind {
	case ActionCleanMemory, ActionCleanCaches, ActionCleanTemporaryFiles:
		return nil
	case ActionCloseBrowserTabs:
		if a.ThresholdMB <= 0 {
			return fmt.Errorf("%w: close_browser_tabs requires a positive threshold_mb", ErrInvalidAction)
		}

		return nil
	case ActionKillProcess:
		if a.Process == "" {
			return fmt.Errorf("%w: kill_process requires a process name", ErrInvalidAction)
		}

		return nil
	case ActionRunCommand:
		if a.Command == "" {
			return fmt.Errorf("%w: run_command requires a command", ErrInvalidAction)
		}

		return nil
	case ActionNotify:
		if a.Title == "" {
			return fmt.Errorf("%w: notify requires a title", ErrInvalidAction)
		}

		return nil
	case ActionExecuteScript:
		if a.ScriptPath == "" {
			return fmt.Errorf("%w: execute_script requires a script path", ErrInvalidAction)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	}
}

// String renders the action for logs and summaries.
func (a AutomationAction) String() string {
	switch a.Kind {
	case ActionCloseBrowserTabs:
		return fmt.Sprintf("close_browser_tabs(>%dMB)", a.ThresholdMB)
	case ActionKillProcess:
		return fmt.Sprintf("kill_process(%s)", a.Process)
	case ActionRunCommand:
		return fmt.Sprintf("run_command(%s)", a.Command)
	case ActionNotify:
		return fmt.Sprintf("notify(%s)", a.Title)
	case ActionExecuteScript:
		return fmt.Sprintf("execute_script(%s)", a.ScriptPath)
	default:
		return string(a.Kind)
	}
}
