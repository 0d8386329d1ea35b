package main

import (
	"context"
	"log/slog"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/cmd"
	"github.com/biodt/argo-connector/pkg/cordra"
	"github.com/biodt/argo-connector/pkg/ingest"
	"github.com/biodt/argo-connector/pkg/otelhelper"
	"github.com/biodt/argo-connector/pkg/sweeper"
)

func run(ctx context.Context, command *cli.Command, logger *slog.Logger) error {
	engine := argo.NewClient(argo.ClientConfig{
		BaseURL:            command.String("argo-url"),
		Token:              command.String("argo-token"),
		InsecureSkipVerify: command.Bool("argo-insecure-skip-verify"),
	}, logger)

	repository := cordra.NewClient(cordra.ClientConfig{
		BaseURL:            command.String("cordra-url"),
		Username:           command.String("cordra-user"),
		Password:           command.String("cordra-password"),
		InsecureSkipVerify: command.Bool("cordra-insecure-skip-verify"),
	}, logger)

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	var tracer trace.Tracer
	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "argo-connector")
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without tracing", "error", err)

			tracer = noop.NewTracerProvider().Tracer("argo-connector")
		}
	} else {
		tracer = noop.NewTracerProvider().Tracer("argo-connector")
	}

	assembler := ingest.NewAssembler(repository, ingest.MimeClassifier{}, logger, ingest.Config{
		MaxFileSize: int64(command.Int("max-file-size")),
		LinkPolicy: ingest.LinkPolicy{
			OverwritePartOf: command.Bool("overwrite-part-of"),
			SetResultOf:     true,
		},
	})

	runs := store.RunRepository()
	ingestService := ingest.NewService(engine, assembler, runs, eventBus, tracer, logger)

	if schedule := command.String("sweep-schedule"); schedule != "" {
		sw, err := sweeper.NewSweeper(engine, ingestService, runs, command.String("argo-namespace"), schedule, logger)
		if err != nil {
			return err
		}

		if err := sw.Start(ctx); err != nil {
			return err
		}

		defer func() {
			if err := sw.Stop(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to stop sweeper", "error", err)
			}
		}()
	}

	api := NewAPI(logger, engine, repository, runs, ingestService, command.String("argo-namespace"))

	err = api.Start(command.Int("port"))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start API server", "error", err)
	}

	return nil
}
