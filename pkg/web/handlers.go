// Package web provides the REST API over planning, safety assessment,
// workflow execution and automation management.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/opsweep/opsweep/pkg/automation"
	"github.com/opsweep/opsweep/pkg/catalog"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/ollama"
	"github.com/opsweep/opsweep/pkg/planner"
	"github.com/opsweep/opsweep/pkg/safety"
	"github.com/opsweep/opsweep/pkg/scheduler"
)

type PlannerService interface {
	Plan(ctx context.Context, query string) (*models.WorkflowPlan, error)
}

type SafetyService interface {
	Assess(ctx context.Context, plan *models.WorkflowPlan) (*models.SafetyAssessment, error)
}

type ExecutorService interface {
	Execute(ctx context.Context, plan *models.WorkflowPlan) (*models.WorkflowResult, error)
}

type APIHandlers struct {
	catalog   *catalog.Catalog
	planner   PlannerService
	safety    SafetyService
	executor  ExecutorService
	scheduler *scheduler.Scheduler
	monitor   *automation.Monitor
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	cat *catalog.Catalog,
	plannerService PlannerService,
	safetyService SafetyService,
	executorService ExecutorService,
	sched *scheduler.Scheduler,
	monitor *automation.Monitor,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		catalog:   cat,
		planner:   plannerService,
		safety:    safetyService,
		executor:  executorService,
		scheduler: sched,
		monitor:   monitor,
		validator: validate,
		logger:    logger.With("module", "api_handlers"),
	}
}

func (h *APIHandlers) GetCapabilities(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"capabilities": h.catalog.All(),
		"total_count":  h.catalog.Len(),
	})
}

// CreatePlan runs the planner and the safety validator in one round trip so
// clients see the plan together with its assessment.
func (h *APIHandlers) CreatePlan(c fiber.Ctx) error {
	var req PlanRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	plan, err := h.planner.Plan(c.Context(), req.Query)
	if err != nil {
		return handleGenerationError(c, err)
	}

	assessment, err := h.safety.Assess(c.Context(), plan)
	if err != nil {
		return handleGenerationError(c, err)
	}

	return c.JSON(PlanResponse{Plan: plan, Assessment: assessment})
}

func (h *APIHandlers) AssessPlan(c fiber.Ctx) error {
	var req AssessRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req.Plan); err != nil {
		return badRequest(c, err.Error())
	}

	assessment, err := h.safety.Assess(c.Context(), &req.Plan)
	if err != nil {
		if errors.Is(err, safety.ErrUnknownCapability) {
			return badRequest(c, err.Error())
		}

		return handleGenerationError(c, err)
	}

	return c.JSON(assessment)
}

// ExecutePlan gates execution behind the safety assessment: rejected plans
// never run, and plans requiring confirmation need confirm=true.
func (h *APIHandlers) ExecutePlan(c fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req.Plan); err != nil {
		return badRequest(c, err.Error())
	}

	assessment, err := h.safety.Assess(c.Context(), &req.Plan)
	if err != nil {
		if errors.Is(err, safety.ErrUnknownCapability) {
			return badRequest(c, err.Error())
		}

		return handleGenerationError(c, err)
	}

	if !assessment.Approved {
		return forbidden(c, "plan_rejected", "The safety validator rejected this plan")
	}

	if assessment.RequiresConfirmation && !req.Confirm {
		return conflict(c, "confirmation_required",
			"This plan requires explicit confirmation; retry with confirm=true")
	}

	result, err := h.executor.Execute(c.Context(), &req.Plan)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.logger.Info("Workflow executed via API", "outcome", result.Summary())

	return c.JSON(ExecuteResponse{Assessment: assessment, Result: result})
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	tasks := h.scheduler.Tasks()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return c.JSON(fiber.Map{"tasks": tasks, "total_count": len(tasks)})
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.scheduler.TaskByID(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	var task models.ScheduledTask
	if err := c.Bind().JSON(&task); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.scheduler.AddTask(c.Context(), &task); err != nil {
		return handleServiceError(c, err)
	}

	// Respond with the scheduler's copy: its wait loop owns the registered
	// struct from here on.
	created, err := h.scheduler.TaskByID(task.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteTask(c fiber.Ctx) error {
	if err := h.scheduler.CancelTask(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableTask(c fiber.Ctx) error {
	return h.setTaskEnabled(c, true)
}

func (h *APIHandlers) DisableTask(c fiber.Ctx) error {
	return h.setTaskEnabled(c, false)
}

func (h *APIHandlers) setTaskEnabled(c fiber.Ctx, enabled bool) error {
	id := c.Params("id")
	if err := h.scheduler.SetTaskEnabled(c.Context(), id, enabled); err != nil {
		return handleServiceError(c, err)
	}

	task, err := h.scheduler.TaskByID(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	rules := h.monitor.Rules()
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return c.JSON(fiber.Map{"rules": rules, "total_count": len(rules)})
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var rule models.AutomationRule
	if err := c.Bind().JSON(&rule); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.monitor.AddRule(&rule); err != nil {
		return handleServiceError(c, err)
	}

	created, err := h.monitor.RuleByID(rule.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	if err := h.monitor.RemoveRule(c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableRule(c fiber.Ctx) error {
	return h.setRuleEnabled(c, true)
}

func (h *APIHandlers) DisableRule(c fiber.Ctx) error {
	return h.setRuleEnabled(c, false)
}

func (h *APIHandlers) setRuleEnabled(c fiber.Ctx, enabled bool) error {
	if err := h.monitor.SetRuleEnabled(c.Params("id"), enabled); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"capabilities": h.catalog.Len(),
	})
}

// handleGenerationError maps planner/safety failures: backend outages are
// 503, undecodable model output is 502.
func handleGenerationError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ollama.ErrServerNotRunning), errors.Is(err, ollama.ErrModelNotFound):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("generation_backend_unavailable").
			WithDetail(err.Error() + ". " + ollama.Suggestion(err))

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	case errors.Is(err, planner.ErrInvalidJSONResponse),
		errors.Is(err, planner.ErrEmptyWorkflow),
		errors.Is(err, planner.ErrWorkflowTooLong),
		planner.IsInvalidCapability(err),
		errors.Is(err, safety.ErrInvalidAssessment):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("generation_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}
