package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/opsweep/opsweep/pkg/automation"
	"github.com/opsweep/opsweep/pkg/catalog"
	"github.com/opsweep/opsweep/pkg/eventbus"
	"github.com/opsweep/opsweep/pkg/ollama"
	"github.com/opsweep/opsweep/pkg/persistence"
	"github.com/opsweep/opsweep/pkg/planner"
	"github.com/opsweep/opsweep/pkg/runner"
	"github.com/opsweep/opsweep/pkg/safety"
	"github.com/opsweep/opsweep/pkg/scheduler"
	"github.com/opsweep/opsweep/pkg/sysmetrics"
	"github.com/opsweep/opsweep/pkg/web"
	"github.com/opsweep/opsweep/pkg/workflow"
)

type API struct {
	logger    *slog.Logger
	store     persistence.Persistence
	eventBus  eventbus.EventBus
	ollamaURL string
	model     string
	validate  *validator.Validate
}

func NewAPI(logger *slog.Logger, store persistence.Persistence, eventBus eventbus.EventBus, ollamaURL, model string) *API {
	return &API{
		logger:    logger,
		store:     store,
		eventBus:  eventBus,
		ollamaURL: ollamaURL,
		model:     model,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App(ctx context.Context) (*fiber.App, error) {
	cat := catalog.Default()
	client := ollama.NewClient(a.ollamaURL, ollama.WithLogger(a.logger))

	executor := workflow.NewExecutor(cat, runner.NewExecRunner(),
		workflow.WithPrivilegedRunner(runner.NewPrivilegedRunner()),
		workflow.WithEventBus(a.eventBus),
		workflow.WithLogger(a.logger),
	)

	actionRunner := automation.NewActionRunner(runner.NewShellActions(), a.logger)

	sched := scheduler.NewScheduler(actionRunner,
		scheduler.WithTaskStore(a.store),
		scheduler.WithEventBus(a.eventBus),
		scheduler.WithLogger(a.logger),
	)

	monitor := automation.NewMonitor(sysmetrics.NewReader(), actionRunner,
		automation.WithRuleStore(a.store),
		automation.WithMonitorEventBus(a.eventBus),
		automation.WithMonitorLogger(a.logger),
	)

	// The API manages the same registries the agent runs, so it must see
	// what is already persisted, not just what this process created.
	if err := a.loadState(ctx, sched, monitor); err != nil {
		return nil, err
	}

	handlers := web.NewAPIHandlers(
		cat,
		planner.NewPlanner(client, cat, a.model, planner.WithLogger(a.logger)),
		safety.NewValidator(client, cat, a.model, safety.WithLogger(a.logger)),
		executor,
		sched,
		monitor,
		a.validate,
		a.logger,
	)

	return web.NewApp(handlers), nil
}

func (a *API) loadState(ctx context.Context, sched *scheduler.Scheduler, monitor *automation.Monitor) error {
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if err := sched.AddTask(ctx, task); err != nil {
			return err
		}
	}

	rules, err := a.store.Rules(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := monitor.AddRule(rule); err != nil {
			return err
		}
	}

	return nil
}

func (a *API) Start(ctx context.Context, port int) error {
	app, err := a.App(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Starting API server", "port", port)

	return app.Listen(fmt.Sprintf(":%d", port))
}
