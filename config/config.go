package config

import (
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Database   DatabaseConfig   `yaml:"database"`
	DynamoDB   DynamoDBConfig   `yaml:"dynamodb"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	NATS       NATSConfig       `yaml:"nats"`
	Influx     InfluxConfig     `yaml:"influx"`
	Fleet      FleetConfig      `yaml:"fleet"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// IngestConfig controls the ingest handler.
type IngestConfig struct {
	// DefaultDeviceID, when set, is used for payloads without a device_id
	// instead of rejecting them.
	DefaultDeviceID   string `yaml:"default_device_id"`
	MaxStatusAttempts int    `yaml:"max_status_attempts"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres, sqlite, dynamodb or memory
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// DynamoDBConfig names the tables used by the dynamodb driver.
type DynamoDBConfig struct {
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	StatusTable   string `yaml:"status_table"`
	HistoryTable  string `yaml:"history_table"`
	CommandsTable string `yaml:"commands_table"`
}

// TelegramConfig holds the chat alert credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// APIEndpoint overrides the Bot API URL format, e.g. for a local Bot API server.
	APIEndpoint string `yaml:"api_endpoint"`
	ChatID   string `yaml:"chat_id"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// NATSConfig configures the reading stream publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
}

// InfluxConfig configures the time-series mirror of readings.
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// FleetConfig controls offline detection and the periodic fleet sweep.
type FleetConfig struct {
	OfflineAfterSeconds int           `yaml:"offline_after_seconds"`
	OfflineAfter        time.Duration `yaml:"-"` // Ignored by YAML parser
	SweepSchedule       string        `yaml:"sweep_schedule"`
}

// Load reads the configuration from the given path. An empty path skips the
// file and builds the configuration from defaults and the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system environment variables")
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrideString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	overrideString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	overrideString(&cfg.Telegram.APIEndpoint, "TELEGRAM_API_ENDPOINT")
	overrideString(&cfg.Database.Driver, "DATABASE_DRIVER")
	overrideString(&cfg.Database.DSN, "DATABASE_DSN")
	overrideString(&cfg.Influx.Token, "INFLUXDB_TOKEN")
	overrideString(&cfg.NATS.URL, "NATS_URL")
	overrideString(&cfg.Push.PublicKey, "VAPID_PUBLIC_KEY")
	overrideString(&cfg.Push.PrivateKey, "VAPID_PRIVATE_KEY")
	overrideString(&cfg.DynamoDB.StatusTable, "DYNAMODB_STATUS_TABLE")
	overrideString(&cfg.DynamoDB.HistoryTable, "DYNAMODB_HISTORY_TABLE")
	overrideString(&cfg.DynamoDB.CommandsTable, "DYNAMODB_COMMANDS_TABLE")

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Printf("ignoring invalid PORT %q: %v", port, err)
		} else {
			cfg.Server.Port = p
		}
	}
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Ingest.MaxStatusAttempts <= 0 {
		cfg.Ingest.MaxStatusAttempts = 3
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.DynamoDB.StatusTable == "" {
		cfg.DynamoDB.StatusTable = "bin_status"
	}
	if cfg.DynamoDB.HistoryTable == "" {
		cfg.DynamoDB.HistoryTable = "bin_history"
	}
	if cfg.DynamoDB.CommandsTable == "" {
		cfg.DynamoDB.CommandsTable = "commands"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.NATS.Stream == "" {
		cfg.NATS.Stream = "BIN_READINGS"
	}

	if cfg.Influx.Bucket == "" {
		cfg.Influx.Bucket = "bins"
	}

	if cfg.Fleet.OfflineAfterSeconds <= 0 {
		cfg.Fleet.OfflineAfterSeconds = 300
	}
	cfg.Fleet.OfflineAfter = time.Duration(cfg.Fleet.OfflineAfterSeconds) * time.Second
	if cfg.Fleet.SweepSchedule == "" {
		cfg.Fleet.SweepSchedule = "@every 1m"
	}
}
