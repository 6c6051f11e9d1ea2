package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opsweep/opsweep/pkg/catalog"
	"github.com/opsweep/opsweep/pkg/log"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/ollama"
	"github.com/opsweep/opsweep/pkg/planner"
	"github.com/opsweep/opsweep/pkg/runner"
	"github.com/opsweep/opsweep/pkg/safety"
	"github.com/opsweep/opsweep/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const defaultModel = "llama3.2"

func generationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "ollama-url",
			Usage:   "Base URL of the Ollama server",
			Value:   ollama.DefaultBaseURL,
			Sources: cli.EnvVars("OLLAMA_URL"),
		},
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Model used for planning and safety assessment",
			Value:   defaultModel,
			Sources: cli.EnvVars("OPSWEEP_MODEL"),
		},
	}
}

type pipeline struct {
	catalog   *catalog.Catalog
	client    *ollama.Client
	planner   *planner.Planner
	validator *safety.Validator
	executor  *workflow.Executor
}

func newPipeline(command *cli.Command) *pipeline {
	logger := log.WithModule("cli")

	cat := catalog.Default()
	client := ollama.NewClient(command.String("ollama-url"), ollama.WithLogger(logger))
	model := command.String("model")

	executor := workflow.NewExecutor(cat, runner.NewExecRunner(),
		workflow.WithPrivilegedRunner(runner.NewPrivilegedRunner()),
		workflow.WithLogger(logger),
		workflow.WithProgress(func(completed, total int, result models.WorkflowStepResult) {
			status := "ok"
			if !result.Success {
				status = "FAILED"
			}

			fmt.Printf("  [%d/%d] %s (%s, %s)\n",
				completed, total, result.Step.CapabilityID, status, result.Duration.Round(time.Millisecond))
		}))

	return &pipeline{
		catalog:   cat,
		client:    client,
		planner:   planner.NewPlanner(client, cat, model, planner.WithLogger(logger)),
		validator: safety.NewValidator(client, cat, model, safety.WithLogger(logger)),
		executor:  executor,
	}
}

func CapabilitiesCommand() *cli.Command {
	return &cli.Command{
		Name:    "capabilities",
		Aliases: []string{"caps"},
		Usage:   "List the maintenance capabilities available to the planner",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Println(catalog.Default().RenderSummary(catalog.DefaultSummaryLimit))

			return nil
		},
	}
}

func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Check the generation backend and list available models",
		Flags: generationFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			client := ollama.NewClient(command.String("ollama-url"))

			if !client.CheckStatus(ctx) {
				fmt.Println("Ollama server: not reachable")
				fmt.Println(ollama.Suggestion(ollama.ErrServerNotRunning))

				return errors.New("generation backend unavailable")
			}

			fmt.Println("Ollama server: running")

			available, err := client.ListModels(ctx)
			if err != nil {
				return err
			}

			for _, model := range available {
				fmt.Printf("  %s\n", model.Name)
			}

			return nil
		},
	}
}

func PlanCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Turn a request into a maintenance plan and assess it, without running anything",
		ArgsUsage: "<request>",
		Flags:     generationFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			query := strings.Join(command.Args().Slice(), " ")
			if query == "" {
				return errors.New("describe what you want done, e.g. opsweep plan \"my disk is full\"")
			}

			p := newPipeline(command)

			plan, assessment, err := p.planAndAssess(ctx, query)
			if err != nil {
				return err
			}

			printPlan(plan, assessment)

			return nil
		},
	}
}

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Plan, assess and execute a maintenance workflow",
		ArgsUsage: "<request>",
		Flags: append(generationFlags(),
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Confirm execution of plans that require confirmation",
			}),
		Action: func(ctx context.Context, command *cli.Command) error {
			query := strings.Join(command.Args().Slice(), " ")
			if query == "" {
				return errors.New("describe what you want done, e.g. opsweep run \"clear my caches\"")
			}

			p := newPipeline(command)

			plan, assessment, err := p.planAndAssess(ctx, query)
			if err != nil {
				return err
			}

			printPlan(plan, assessment)

			if !assessment.Approved {
				return errors.New("the safety validator rejected this plan; nothing was executed")
			}

			if assessment.RequiresConfirmation && !command.Bool("yes") {
				return errors.New("this plan requires confirmation; re-run with --yes to proceed")
			}

			fmt.Println("Executing:")

			result, err := p.executor.Execute(ctx, plan)
			if err != nil {
				return err
			}

			fmt.Println(result.Summary())

			if !result.Success {
				return errors.New("workflow finished with failures")
			}

			return nil
		},
	}
}

func (p *pipeline) planAndAssess(ctx context.Context, query string) (*models.WorkflowPlan, *models.SafetyAssessment, error) {
	plan, err := p.planner.Plan(ctx, query)
	if err != nil {
		if suggestion := ollama.Suggestion(err); suggestion != "" {
			return nil, nil, fmt.Errorf("%w. %s", err, suggestion)
		}

		return nil, nil, err
	}

	assessment, err := p.validator.Assess(ctx, plan)
	if err != nil {
		return nil, nil, err
	}

	return plan, assessment, nil
}

func printPlan(plan *models.WorkflowPlan, assessment *models.SafetyAssessment) {
	fmt.Printf("Plan: %s\n", plan.Summary)

	for i, step := range plan.Workflow {
		fmt.Printf("  %d. %s", i+1, step.CapabilityID)

		if step.Reason != "" {
			fmt.Printf(": %s", step.Reason)
		}

		fmt.Println()
	}

	fmt.Printf("Risk: %s", assessment.RiskLevel)

	if assessment.RequiresConfirmation {
		fmt.Print(" (confirmation required)")
	}

	fmt.Println()

	for _, warning := range assessment.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}

	for _, suggestion := range assessment.Suggestions {
		fmt.Printf("  suggestion: %s\n", suggestion)
	}
}
