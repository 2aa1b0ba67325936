package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"smart-bin-backend/config"
	"smart-bin-backend/internal/api"
	"smart-bin-backend/internal/bootstrap"
	"smart-bin-backend/internal/ingest"
)

var service *ingest.Service

func init() {
	logger := bootstrap.NewLogger()
	logger.Info("Smart bin ingest: cold start")

	ctx := context.Background()

	// Configuration comes from the environment; CONFIG_PATH is optional here.
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fail(logger, "failed to load configuration", err)
	}

	st, gormDB, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		fail(logger, "failed to initialize store", err)
	}

	notifier, err := bootstrap.BuildNotifier(ctx, cfg, gormDB, logger)
	if err != nil {
		fail(logger, "failed to initialize notifier", err)
	}

	// Sinks stay open for the lifetime of the execution environment.
	sinks, _ := bootstrap.BuildSinks(ctx, cfg)

	service = bootstrap.NewIngestService(st, notifier, sinks, cfg, logger)
}

func fail(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	panic(err)
}

func main() {
	lambda.Start(api.LambdaHandler(service))
}
