// Package bootstrap builds the runtime dependencies shared by the daemon, the
// lambda function and the seeder from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gorm.io/gorm"

	"smart-bin-backend/config"
	"smart-bin-backend/internal/db"
	"smart-bin-backend/internal/ingest"
	"smart-bin-backend/internal/notification"
	"smart-bin-backend/internal/store"
	"smart-bin-backend/internal/stream"
	"smart-bin-backend/internal/tsdb"
)

// NewLogger returns the JSON logger request-level code writes to.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// OpenStore opens the configured backend. The returned *gorm.DB is nil unless
// the driver is SQL-backed.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, *gorm.DB, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Println("Using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil, nil

	case "dynamodb":
		client, err := NewDynamoClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, nil, err
		}
		return store.NewDynamoStore(client, store.DynamoTables{
			Status:   cfg.DynamoDB.StatusTable,
			History:  cfg.DynamoDB.HistoryTable,
			Commands: cfg.DynamoDB.CommandsTable,
		}), nil, nil

	default:
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return store.NewGormStore(gormDB), gormDB, nil
	}
}

// NewDynamoClient loads the default AWS configuration. A configured endpoint
// points the client at DynamoDB Local or LocalStack.
func NewDynamoClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	log.Println("DynamoDB client configured")
	return client, nil
}

// WebpushOptions returns nil when push alerts are not configured.
func WebpushOptions(cfg config.PushConfig) *webpush.Options {
	if !cfg.Enabled() {
		return nil
	}
	return &webpush.Options{
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		Subscriber:      cfg.Subject,
		TTL:             cfg.TTL,
	}
}

// BuildNotifier fans alerts out to Telegram and, when a SQL store and VAPID
// keys are available, to browser push workers started on ctx. Missing Telegram
// credentials or an unreachable Bot API are not an error: each alert is then
// logged and skipped.
func BuildNotifier(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, logger *slog.Logger) (notification.Notifier, error) {
	var sender notification.MessageSender
	if cfg.Telegram.BotToken != "" {
		bot, err := notification.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint)
		if err != nil {
			logger.WarnContext(ctx, "telegram bot unavailable, chat alerts disabled", "error", err)
		} else {
			sender = bot
		}
	}
	notifiers := notification.Multi{notification.NewTelegramNotifier(sender, cfg.Telegram.ChatID, logger)}

	if opts := WebpushOptions(cfg.Push); opts != nil && gormDB != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, opts)
		pool.Start(ctx)
		notifiers = append(notifiers, pool)
	}
	return notifiers, nil
}

// BuildSinks connects the enabled reading sinks. A sink that cannot be reached
// at startup is logged and left out. The returned func closes every sink.
func BuildSinks(ctx context.Context, cfg *config.Config) ([]ingest.Sink, func()) {
	var sinks []ingest.Sink
	var closers []func()

	if cfg.NATS.Enabled {
		pub, err := stream.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			log.Printf("Reading stream disabled: %v", err)
		} else {
			sinks = append(sinks, pub)
			closers = append(closers, pub.Close)
		}
	}

	if cfg.Influx.Enabled {
		w := tsdb.NewWriter(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		sinks = append(sinks, w)
		closers = append(closers, w.Close)
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

// NewIngestService wires the ingest service with the configured options.
func NewIngestService(st store.Store, n notification.Notifier, sinks []ingest.Sink, cfg *config.Config, logger *slog.Logger) *ingest.Service {
	return ingest.NewService(st, n,
		ingest.WithLogger(logger),
		ingest.WithSinks(sinks...),
		ingest.WithDefaultDeviceID(cfg.Ingest.DefaultDeviceID),
		ingest.WithMaxStatusAttempts(cfg.Ingest.MaxStatusAttempts),
	)
}
