// Package main provides the opsweep REST API server.
package main

import (
	"context"
	"os"

	"github.com/opsweep/opsweep/pkg/cmd"
	"github.com/opsweep/opsweep/pkg/log"
	"github.com/opsweep/opsweep/pkg/ollama"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9480

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "opsweep-api",
		Usage:                 "Serve the maintenance planning and automation API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage root for tasks and rules (file://path or a plain path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
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
				Value:   "llama3.2",
				Sources: cli.EnvVars("OPSWEEP_MODEL"),
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
			logger.InfoContext(ctx, "Initializing opsweep API")

			cmd.SetupTracing(ctx, "opsweep-api", logger)

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

			api := NewAPI(logger, store, eventBus, command.String("ollama-url"), command.String("model"))

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
