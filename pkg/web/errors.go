package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/opsweep/opsweep/pkg/automation"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/scheduler"
	"github.com/opsweep/opsweep/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func forbidden(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps typed domain errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrInvalidTrigger),
		errors.Is(err, models.ErrInvalidSchedule):
		return badRequest(c, err.Error())

	case errors.Is(err, scheduler.ErrTaskExists),
		errors.Is(err, automation.ErrRuleExists):
		return conflict(c, "already_exists", err.Error())

	case errors.Is(err, scheduler.ErrTaskNotFound),
		errors.Is(err, automation.ErrRuleNotFound):
		return notFound(c, err.Error())

	case errors.Is(err, workflow.ErrAlreadyExecuting):
		return conflict(c, "execution_in_progress", err.Error())

	default:
		return internalError(c, err)
	}
}
