// Package main provides the opsweep CLI: plan, assess and run maintenance
// workflows from a natural-language request.
package main

import (
	"context"
	"os"

	"github.com/opsweep/opsweep/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "opsweep",
		Usage:                 "AI-planned macOS system maintenance",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			CapabilitiesCommand(),
			StatusCommand(),
			PlanCommand(),
			RunCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
