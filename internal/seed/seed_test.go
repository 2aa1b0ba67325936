package seed

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-bin-backend/internal/model"
	"smart-bin-backend/internal/store"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestGenerate_Shape(t *testing.T) {
	cfg := DefaultConfig()
	series := Generate(rand.New(rand.NewPCG(1, 2)), cfg, now)
	require.Len(t, series, 3)

	for _, s := range series {
		require.Len(t, s.Readings, 30*4)

		first := s.Readings[0]
		assert.Equal(t, now.Add(-30*24*time.Hour), first.Timestamp)
		assert.GreaterOrEqual(t, first.FillPercentage, 6.0)
		assert.LessOrEqual(t, first.FillPercentage, 28.0)

		loc, ok := cfg.location(s.Status.DeviceID)
		require.True(t, ok)

		prev := first
		for i, r := range s.Readings {
			assert.Equal(t, s.Status.DeviceID, r.DeviceID)
			assert.Equal(t, loc.Lat, r.Lat)
			assert.Equal(t, loc.Lon, r.Lon)
			assert.LessOrEqual(t, r.FillPercentage, 100.0)
			require.NotNil(t, r.TrashLevelCM)
			assert.Equal(t, round1(25*(1-r.FillPercentage/100)), *r.TrashLevelCM)
			assert.GreaterOrEqual(t, *r.TempC, 24.0)
			assert.LessOrEqual(t, *r.TempC, 32.0)
			assert.GreaterOrEqual(t, *r.HumidityPct, 40.0)
			assert.LessOrEqual(t, *r.HumidityPct, 70.0)

			if i > 0 {
				step := r.FillPercentage - prev.FillPercentage
				if prev.FillPercentage < 100 {
					assert.GreaterOrEqual(t, step, 0.0)
					assert.LessOrEqual(t, step, 8.0)
				} else {
					assert.Equal(t, 100.0, r.FillPercentage)
				}
				assert.Equal(t, 6*time.Hour, r.Timestamp.Sub(prev.Timestamp))
			}
			prev = r
		}
		assert.True(t, prev.Timestamp.Before(now))

		assert.Equal(t, prev.FillPercentage, s.Status.FillPercentage)
		assert.Equal(t, prev.FillPercentage >= 95, s.Status.IsFull)
		assert.Equal(t, prev.TempC, s.Status.TempC)
		assert.Equal(t, now, s.Status.LastUpdated)
	}
}

func TestGenerate_ReachesFullOverAMonth(t *testing.T) {
	// 120 steps of at least 1 from at most 20 always clamps at 100.
	for _, s := range Generate(rand.New(rand.NewPCG(7, 7)), DefaultConfig(), now) {
		assert.Equal(t, 100.0, s.Status.FillPercentage)
		assert.True(t, s.Status.IsFull)
		assert.Equal(t, 0.0, *s.Readings[len(s.Readings)-1].TrashLevelCM)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := Generate(rand.New(rand.NewPCG(3, 4)), cfg, now)
	b := Generate(rand.New(rand.NewPCG(3, 4)), cfg, now)
	for i := range a {
		for j := range a[i].Readings {
			assert.Equal(t, a[i].Readings[j].FillPercentage, b[i].Readings[j].FillPercentage)
			assert.Equal(t, *a[i].Readings[j].TempC, *b[i].Readings[j].TempC)
		}
	}
}

func TestRun_WritesHistoryAndStatus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 2
	st := store.NewMemoryStore()

	n, err := Run(context.Background(), st, cfg, rand.New(rand.NewPCG(1, 1)), now)
	require.NoError(t, err)
	assert.Equal(t, 3*2*4, n)

	statuses, err := st.ListStatuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	recent, err := st.RecentReadings(context.Background(), "ESP32_BIN_02", 100)
	require.NoError(t, err)
	assert.Len(t, recent, 8)

	status, err := st.GetStatus(context.Background(), "ESP32_BIN_02")
	require.NoError(t, err)
	assert.Equal(t, recent[len(recent)-1].FillPercentage, status.FillPercentage)
}

type failingWriter struct{}

func (failingWriter) AppendReadings(context.Context, ...model.Reading) error {
	return errors.New("quota exceeded")
}

func (failingWriter) PutStatus(context.Context, model.Status) error { return nil }

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), failingWriter{}, DefaultConfig(), rand.New(rand.NewPCG(1, 1)), now)
	assert.ErrorContains(t, err, "ESP32_BIN_01")
	assert.ErrorContains(t, err, "quota exceeded")

	cfg := DefaultConfig()
	cfg.MinFillStep = 9
	_, err = Run(context.Background(), failingWriter{}, cfg, rand.New(rand.NewPCG(1, 1)), now)
	assert.ErrorContains(t, err, "min_fill_step")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file and env", func(t *testing.T) {
		dir := t.TempDir()
		yaml := `
devices: [BIN_A, BIN_B]
days: 7
locations:
  - device_id: BIN_A
    lat: 1.5
    lon: 2.5
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(yaml), 0o600))
		t.Setenv("SEED_ENTRIES_PER_DAY", "2")

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"BIN_A", "BIN_B"}, cfg.Devices)
		assert.Equal(t, 7, cfg.Days)
		assert.Equal(t, 2, cfg.EntriesPerDay)
		assert.Equal(t, 25.0, cfg.BinHeightCM)
		assert.Equal(t, []Location{{DeviceID: "BIN_A", Lat: 1.5, Lon: 2.5}}, cfg.Locations)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("SEED_DAYS", "0")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("negative fill step from env", func(t *testing.T) {
		t.Setenv("SEED_MIN_FILL_STEP", "-5")
		_, err := LoadConfig(t.TempDir())
		assert.ErrorContains(t, err, "min_fill_step")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero fill step", func(c *Config) { c.MinFillStep = 0 }, "min_fill_step"},
		{"negative fill step", func(c *Config) { c.MinFillStep = -5 }, "min_fill_step"},
		{"negative start fill", func(c *Config) { c.MinStartFill = -1 }, "start fill"},
		{"start fill above 100", func(c *Config) { c.MaxStartFill = 120 }, "start fill"},
		{"full start range", func(c *Config) { c.MinStartFill, c.MaxStartFill = 0, 100 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
