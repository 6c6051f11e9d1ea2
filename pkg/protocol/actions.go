package protocol

import "context"

// SystemActions is the collaborator surface automation actions dispatch to.
// Each method corresponds to exactly one models.ActionKind.
type SystemActions interface {
	CleanMemory(ctx context.Context) error
	CleanCaches(ctx context.Context) error
	CleanTemporaryFiles(ctx context.Context) error
	CloseBrowserTabs(ctx context.Context, thresholdMB int) error
	KillProcess(ctx context.Context, name string) error
	RunCommand(ctx context.Context, command string) error
	Notify(ctx context.Context, title, message string) error
	ExecuteScript(ctx context.Context, path string) error
}
