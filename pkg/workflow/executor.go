// Package workflow executes validated maintenance plans step by step against
// the capability runners.
package workflow

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opsweep/opsweep/pkg/catalog"
	"github.com/opsweep/opsweep/pkg/eventbus"
	"github.com/opsweep/opsweep/pkg/events"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/otelhelper"
	"github.com/opsweep/opsweep/pkg/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProgressFunc is called after every finished step with the count of
// completed steps, the total planned, and the step's result.
type ProgressFunc func(completed, total int, result models.WorkflowStepResult)

type Executor struct {
	catalog    *catalog.Catalog
	runner     protocol.CapabilityRunner
	privileged protocol.CapabilityRunner
	bus        eventbus.EventPublisher
	logger     *slog.Logger
	tracer     trace.Tracer
	onProgress ProgressFunc

	running   atomic.Bool
	cancelled atomic.Bool
}

type Option func(*Executor)

// WithPrivilegedRunner routes elevated capabilities through a separate
// runner, typically one that prompts for administrator authorization.
func WithPrivilegedRunner(runner protocol.CapabilityRunner) Option {
	return func(e *Executor) {
		e.privileged = runner
	}
}

func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(e *Executor) {
		e.bus = bus
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(e *Executor) {
		e.onProgress = fn
	}
}

func NewExecutor(cat *catalog.Catalog, runner protocol.CapabilityRunner, opts ...Option) *Executor {
	e := &Executor{
		catalog: cat,
		runner:  runner,
		logger:  slog.Default(),
		tracer:  otel.Tracer("opsweep/workflow"),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.privileged == nil {
		e.privileged = e.runner
	}

	return e
}

// Cancel requests a cooperative stop. The step currently running finishes;
// no further steps start and the run is reported as aborted.
func (e *Executor) Cancel() {
	e.cancelled.Store(true)
}

// Execute runs every step of plan in order. A failed non-critical step is
// recorded and execution continues; a failed critical step aborts the rest
// of the run. Only one workflow runs at a time.
//
// Success means no step failed AND the run was not aborted: a cancelled run
// reports Success=false even with an empty FailedSteps list, alongside
// ErrExecutionCancelled.
func (e *Executor) Execute(ctx context.Context, plan *models.WorkflowPlan) (*models.WorkflowResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyExecuting
	}
	defer e.running.Store(false)

	e.cancelled.Store(false)

	executionID := uuid.New().String()
	total := len(plan.Workflow)

	ctx, span := e.tracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String(otelhelper.ExecutionIDKey, executionID),
			attribute.Int("opsweep.plan.steps", total),
		))
	defer span.End()

	logger := e.logger.With("execution_id", executionID, "steps", total)
	logger.Info("Starting workflow execution", "summary", plan.Summary)

	e.publish(ctx, executionID, events.WorkflowStarted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowStartedEvent),
		ExecutionID: executionID,
		Summary:     plan.Summary,
		StepCount:   total,
	})

	started := time.Now()
	results := make([]models.WorkflowStepResult, 0, total)
	failed := make([]models.WorkflowStepResult, 0)
	aborted := false
	cancelled := false

	for i, step := range plan.Workflow {
		if e.cancelled.Load() || ctx.Err() != nil {
			logger.Warn("Workflow execution cancelled", "completed_steps", len(results))

			aborted = true
			cancelled = true

			break
		}

		capability, ok := e.catalog.Get(step.CapabilityID)
		if !ok {
			err := &CapabilityNotFoundError{ID: step.CapabilityID}
			otelhelper.SetError(span, err)

			return nil, err
		}

		result := e.runStep(ctx, logger, capability, step, i+1)
		results = append(results, result)

		e.publish(ctx, executionID, events.WorkflowStepFinished{
			BaseEvent:   events.NewBaseEvent(events.WorkflowStepEvent),
			ExecutionID: executionID,
			Result:      result,
		})

		if e.onProgress != nil {
			e.onProgress(len(results), total, result)
		}

		if !result.Success {
			failed = append(failed, result)

			if result.Critical {
				logger.Error("Critical step failed, aborting workflow",
					"capability_id", step.CapabilityID, "step", result.StepNumber)

				aborted = true

				break
			}

			logger.Warn("Step failed, continuing",
				"capability_id", step.CapabilityID, "step", result.StepNumber)
		}
	}

	result := &models.WorkflowResult{
		Plan:          *plan,
		Results:       results,
		FailedSteps:   failed,
		TotalDuration: time.Since(started),
		CompletedAt:   time.Now().UTC(),
		Success:       len(failed) == 0 && !aborted,
		Aborted:       aborted,
	}

	span.SetAttributes(
		attribute.Bool("opsweep.execution.success", result.Success),
		attribute.Bool("opsweep.execution.aborted", result.Aborted),
		attribute.Int("opsweep.execution.failed_steps", len(failed)),
	)

	e.publish(ctx, executionID, events.WorkflowCompleted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowCompletedEvent),
		ExecutionID: executionID,
		Success:     result.Success,
		Aborted:     result.Aborted,
		FailedSteps: len(failed),
		Duration:    result.TotalDuration,
	})

	logger.Info("Workflow execution finished", "outcome", result.Summary())

	if cancelled {
		return result, ErrExecutionCancelled
	}

	return result, nil
}

func (e *Executor) runStep(ctx context.Context, logger *slog.Logger, capability models.Capability, step models.WorkflowStep, number int) models.WorkflowStepResult {
	ctx, span := e.tracer.Start(ctx, "workflow.step",
		trace.WithAttributes(
			attribute.String(otelhelper.CapabilityIDKey, capability.ID),
			attribute.String(otelhelper.RiskKey, string(capability.Risk)),
		))
	defer span.End()

	runner := e.runner
	if capability.Privilege == models.PrivilegeElevated {
		runner = e.privileged
	}

	logger.Info("Executing step",
		"step", number,
		"capability_id", capability.ID,
		"risk", capability.Risk,
		"privilege", capability.Privilege)

	started := time.Now()
	execResult, err := runner.Execute(ctx, capability, step.Arguments)

	result := models.WorkflowStepResult{
		Step:       step,
		StepNumber: number,
		Duration:   time.Since(started),
		Critical:   capability.Risk == models.RiskDestructive,
	}

	switch {
	case err != nil:
		otelhelper.SetError(span, err)

		// A runner that could not dispatch at all halts the run regardless
		// of the capability's risk.
		result.Error = err.Error()
		result.Critical = true
	case execResult.ExitCode != 0:
		result.Output = execResult.Stdout
		result.Error = execResult.Stderr
	default:
		result.Success = true
		result.Output = execResult.Stdout
	}

	return result
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
