package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"smart-bin-backend/config"
	"smart-bin-backend/internal/ingest"
	"smart-bin-backend/internal/notification"
	"smart-bin-backend/internal/store"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		st, gormDB, err := OpenStore(ctx, &config.Config{Database: config.DatabaseConfig{Driver: "memory"}})
		require.NoError(t, err)
		assert.IsType(t, &store.MemoryStore{}, st)
		assert.Nil(t, gormDB)
	})

	t.Run("sqlite", func(t *testing.T) {
		st, gormDB, err := OpenStore(ctx, &config.Config{Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:bootstrap_test?mode=memory&cache=shared",
		}})
		require.NoError(t, err)
		require.NotNil(t, gormDB)
		assert.IsType(t, &store.GormStore{}, st)

		_, err = st.GetStatus(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("dynamodb", func(t *testing.T) {
		st, gormDB, err := OpenStore(ctx, &config.Config{
			Database: config.DatabaseConfig{Driver: "dynamodb"},
			DynamoDB: config.DynamoDBConfig{Region: "ap-southeast-1", StatusTable: "s", HistoryTable: "h", CommandsTable: "c"},
		})
		require.NoError(t, err)
		assert.Nil(t, gormDB)
		dyn, ok := st.(*store.DynamoStore)
		require.True(t, ok)
		assert.Equal(t, store.DynamoTables{Status: "s", History: "h", Commands: "c"}, dyn.Tables)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, _, err := OpenStore(ctx, &config.Config{Database: config.DatabaseConfig{Driver: "oracle"}})
		assert.Error(t, err)
	})
}

func TestNewDynamoClient_Endpoint(t *testing.T) {
	client, err := NewDynamoClient(context.Background(), config.DynamoDBConfig{
		Region:   "us-east-1",
		Endpoint: "http://localhost:8000",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", aws.ToString(client.Options().BaseEndpoint))
	assert.Equal(t, "us-east-1", client.Options().Region)
}

func TestWebpushOptions(t *testing.T) {
	assert.Nil(t, WebpushOptions(config.PushConfig{PublicKey: "pub"}))

	opts := WebpushOptions(config.PushConfig{PublicKey: "pub", PrivateKey: "priv", Subject: "mailto:ops@example.com", TTL: 60})
	require.NotNil(t, opts)
	assert.Equal(t, "pub", opts.VAPIDPublicKey)
	assert.Equal(t, "mailto:ops@example.com", opts.Subscriber)
	assert.Equal(t, 60, opts.TTL)
}

func TestBuildNotifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("telegram without credentials only", func(t *testing.T) {
		n, err := BuildNotifier(ctx, &config.Config{}, nil, quietLogger)
		require.NoError(t, err)
		multi, ok := n.(notification.Multi)
		require.True(t, ok)
		assert.Len(t, multi, 1)
		assert.NoError(t, n.Notify(ctx, notification.Alert{DeviceID: "ESP32_BIN_01", FillPercentage: 99}))
	})

	t.Run("rejected bot token keeps an unconfigured notifier", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
		}))
		defer api.Close()

		cfg := &config.Config{Telegram: config.TelegramConfig{
			BotToken:    "123:bogus",
			ChatID:      "-1001",
			APIEndpoint: api.URL + "/bot%s/%s",
		}}
		n, err := BuildNotifier(ctx, cfg, nil, quietLogger)
		require.NoError(t, err)
		multi, ok := n.(notification.Multi)
		require.True(t, ok)
		assert.Len(t, multi, 1)
		assert.NoError(t, n.Notify(ctx, notification.Alert{DeviceID: "ESP32_BIN_01", FillPercentage: 99}))
	})

	t.Run("push needs a sql store", func(t *testing.T) {
		cfg := &config.Config{
			Push:       config.PushConfig{PublicKey: "pub", PrivateKey: "priv"},
			WorkerPool: config.WorkerPoolConfig{Size: 1},
		}
		n, err := BuildNotifier(ctx, cfg, nil, quietLogger)
		require.NoError(t, err)
		assert.Len(t, n.(notification.Multi), 1)

		n, err = BuildNotifier(ctx, cfg, &gorm.DB{}, quietLogger)
		require.NoError(t, err)
		multi := n.(notification.Multi)
		require.Len(t, multi, 2)
		assert.IsType(t, &notification.WorkerPool{}, multi[1])
	})
}

func TestBuildSinks_NoneEnabled(t *testing.T) {
	sinks, closeAll := BuildSinks(context.Background(), &config.Config{})
	assert.Empty(t, sinks)
	closeAll()
}

func TestBuildSinks_Influx(t *testing.T) {
	sinks, closeAll := BuildSinks(context.Background(), &config.Config{
		Influx: config.InfluxConfig{Enabled: true, URL: "http://localhost:8086", Bucket: "bins"},
	})
	defer closeAll()
	assert.Len(t, sinks, 1)
}

func TestNewIngestService(t *testing.T) {
	cfg := &config.Config{Ingest: config.IngestConfig{DefaultDeviceID: "LEGACY_BIN", MaxStatusAttempts: 2}}
	st := store.NewMemoryStore()
	svc := NewIngestService(st, nil, nil, cfg, quietLogger)

	resp := svc.Handle(context.Background(), ingest.Request{Method: "POST", Body: []byte(`{"fill_percentage":10}`)})
	assert.Equal(t, 200, resp.StatusCode)

	_, err := st.GetStatus(context.Background(), "LEGACY_BIN")
	assert.NoError(t, err)
}
