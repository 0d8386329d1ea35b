package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/biodt/argo-connector/pkg/log"
)

const defaultPort = 8000

func main() {
	logger := log.WithModule("argo-connector")

	cmd := &cli.Command{
		Name:                  "argo-connector",
		Usage:                 "Ingest finished Argo workflow runs into a Cordra repository",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the connector API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "argo-url",
				Usage:    "Base URL of the Argo Workflows server",
				Required: true,
				Sources:  cli.EnvVars("ARGO_URL"),
			},
			&cli.StringFlag{
				Name:    "argo-token",
				Usage:   "Bearer token for the Argo Workflows server",
				Sources: cli.EnvVars("ARGO_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "argo-namespace",
				Usage:   "Default namespace for workflow lookups",
				Value:   "argo",
				Sources: cli.EnvVars("ARGO_NAMESPACE"),
			},
			&cli.BoolFlag{
				Name:    "argo-insecure-skip-verify",
				Usage:   "Skip TLS certificate verification for the Argo server",
				Sources: cli.EnvVars("ARGO_INSECURE_SKIP_VERIFY"),
			},
			&cli.StringFlag{
				Name:     "cordra-url",
				Usage:    "Base URL of the Cordra repository",
				Required: true,
				Sources:  cli.EnvVars("CORDRA_URL"),
			},
			&cli.StringFlag{
				Name:     "cordra-user",
				Usage:    "Username for the Cordra repository",
				Required: true,
				Sources:  cli.EnvVars("CORDRA_USER"),
			},
			&cli.StringFlag{
				Name:     "cordra-password",
				Usage:    "Password for the Cordra repository",
				Required: true,
				Sources:  cli.EnvVars("CORDRA_PASSWORD"),
			},
			&cli.BoolFlag{
				Name:    "cordra-insecure-skip-verify",
				Usage:   "Skip TLS certificate verification for the Cordra repository",
				Sources: cli.EnvVars("CORDRA_INSECURE_SKIP_VERIFY"),
			},
			&cli.IntFlag{
				Name:    "max-file-size",
				Usage:   "Largest artifact, in bytes, uploaded to the repository",
				Sources: cli.EnvVars("MAX_FILE_SIZE"),
			},
			&cli.BoolFlag{
				Name:    "overwrite-part-of",
				Usage:   "Overwrite an existing partOf link when a file joins a new dataset",
				Sources: cli.EnvVars("OVERWRITE_PART_OF"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for the ingestion run store",
				Value:   "file://./data/runs",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule for the reconciliation sweep (empty disables it)",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing connector")

			return run(ctx, command, logger)
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
