// Package main provides the opsweep agent: the long-running daemon that
// executes scheduled tasks and trigger-driven automation rules.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsweep/opsweep/pkg/automation"
	"github.com/opsweep/opsweep/pkg/cmd"
	"github.com/opsweep/opsweep/pkg/events"
	"github.com/opsweep/opsweep/pkg/log"
	"github.com/opsweep/opsweep/pkg/persistence"
	"github.com/opsweep/opsweep/pkg/runner"
	"github.com/opsweep/opsweep/pkg/scheduler"
	"github.com/opsweep/opsweep/pkg/sysmetrics"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("agent")

	command := &cli.Command{
		Name:                  "opsweep-agent",
		Usage:                 "Run scheduled maintenance tasks and automation rules",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage root for tasks and rules (file://path or a plain path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often trigger conditions are sampled",
				Value:   automation.DefaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "cooldown",
				Usage:   "Quiet period after a rule fires",
				Value:   automation.DefaultCooldown,
				Sources: cli.EnvVars("RULE_COOLDOWN"),
			},
			&cli.BoolFlag{
				Name:    "install-defaults",
				Usage:   "Install the stock tasks and rules when the store is empty",
				Value:   true,
				Sources: cli.EnvVars("INSTALL_DEFAULTS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger.InfoContext(ctx, "Initializing opsweep agent")

			cmd.SetupTracing(ctx, "opsweep-agent", logger)

			store := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			_ = eventBus.Handle(events.TaskExecutedEvent, func(_ context.Context, event interface{}) error {
				if executed, ok := event.(*events.TaskExecuted); ok {
					logger.Info("Task executed", "task_id", executed.TaskID, "run_count", executed.RunCount)
				}

				return nil
			})
			_ = eventBus.Handle(events.RuleFiredEvent, func(_ context.Context, event interface{}) error {
				if fired, ok := event.(*events.RuleFired); ok {
					logger.Info("Rule fired", "rule_id", fired.RuleID, "value", fired.MetricValue)
				}

				return nil
			})

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := eventBus.Subscribe(runCtx); err != nil {
				return err
			}

			actionRunner := automation.NewActionRunner(runner.NewShellActions(), logger)

			sched := scheduler.NewScheduler(actionRunner,
				scheduler.WithTaskStore(store),
				scheduler.WithEventBus(eventBus),
				scheduler.WithLogger(logger),
			)

			monitor := automation.NewMonitor(sysmetrics.NewReader(), actionRunner,
				automation.WithRuleStore(store),
				automation.WithMonitorEventBus(eventBus),
				automation.WithPollInterval(command.Duration("poll-interval")),
				automation.WithCooldown(command.Duration("cooldown")),
				automation.WithMonitorLogger(logger),
			)

			if err := loadState(runCtx, store, sched, monitor, command.Bool("install-defaults")); err != nil {
				return err
			}

			if err := sched.Start(runCtx); err != nil {
				return err
			}

			if err := monitor.Start(runCtx); err != nil {
				return err
			}

			logger.InfoContext(runCtx, "Agent running",
				"tasks", len(sched.Tasks()),
				"rules", len(monitor.Rules()))

			<-runCtx.Done()

			logger.Info("Shutting down agent")
			monitor.Stop()
			sched.Stop()

			// Give in-flight action processes a moment to wind down.
			time.Sleep(100 * time.Millisecond)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

// loadState restores persisted tasks and rules, falling back to the stock
// set when the store is empty.
func loadState(ctx context.Context, store persistence.Persistence, sched *scheduler.Scheduler, monitor *automation.Monitor, installDefaults bool) error {
	tasks, err := store.Tasks(ctx)
	if err != nil {
		return err
	}

	if len(tasks) == 0 && installDefaults {
		tasks = automation.DefaultTasks()
	}

	for _, task := range tasks {
		if err := sched.AddTask(ctx, task); err != nil {
			return err
		}
	}

	rules, err := store.Rules(ctx)
	if err != nil {
		return err
	}

	if len(rules) == 0 && installDefaults {
		rules = automation.DefaultRules()
	}

	for _, rule := range rules {
		if err := monitor.AddRule(rule); err != nil {
			return err
		}
	}

	return nil
}
