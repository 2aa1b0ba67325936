// Package seed fills a store with synthetic bin history for demos and dashboards.
package seed

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"smart-bin-backend/internal/fullness"
	"smart-bin-backend/internal/model"
)

// Writer is the part of the store the seeder writes through.
type Writer interface {
	AppendReadings(ctx context.Context, readings ...model.Reading) error
	PutStatus(ctx context.Context, status model.Status) error
}

// Series is the generated history of one bin and its resulting live status.
type Series struct {
	Readings []model.Reading
	Status   model.Status
}

// Generate builds one series per configured device. Fill rises by a random
// step per entry and is clamped at 100; readings are oldest first and end
// before now.
func Generate(rng *rand.Rand, cfg Config, now time.Time) []Series {
	now = now.UTC()
	interval := 24 * time.Hour / time.Duration(cfg.EntriesPerDay)
	start := now.Add(-time.Duration(cfg.Days) * 24 * time.Hour)

	out := make([]Series, 0, len(cfg.Devices))
	for _, deviceID := range cfg.Devices {
		loc, ok := cfg.location(deviceID)
		if !ok {
			log.Printf("No location configured for %s, using 0,0", deviceID)
		}

		fill := float64(intIn(rng, cfg.MinStartFill, cfg.MaxStartFill))
		readings := make([]model.Reading, 0, cfg.Days*cfg.EntriesPerDay)
		for i := 0; i < cfg.Days*cfg.EntriesPerDay; i++ {
			fill = math.Min(fill+float64(intIn(rng, cfg.MinFillStep, cfg.MaxFillStep)), 100)
			readings = append(readings, model.Reading{
				ID:             uuid.NewString(),
				DeviceID:       deviceID,
				FillPercentage: fill,
				TrashLevelCM:   ptr(round1(cfg.BinHeightCM * (1 - fill/100))),
				TempC:          ptr(round1(floatIn(rng, cfg.MinTempC, cfg.MaxTempC))),
				HumidityPct:    ptr(round1(floatIn(rng, cfg.MinHumidityPct, cfg.MaxHumidityPct))),
				Lat:            loc.Lat,
				Lon:            loc.Lon,
				Timestamp:      start.Add(time.Duration(i) * interval),
			})
		}

		last := readings[len(readings)-1]
		out = append(out, Series{
			Readings: readings,
			Status: model.Status{
				DeviceID:       deviceID,
				FillPercentage: last.FillPercentage,
				IsFull:         fullness.IsFull(last.FillPercentage),
				TempC:          last.TempC,
				HumidityPct:    last.HumidityPct,
				Lat:            loc.Lat,
				Lon:            loc.Lon,
				LastUpdated:    now,
			},
		})
	}
	return out
}

// Run generates the history and writes it, then overwrites each bin's status
// with the snapshot. It returns the number of readings written.
func Run(ctx context.Context, w Writer, cfg Config, rng *rand.Rand, now time.Time) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	written := 0
	for _, s := range Generate(rng, cfg, now) {
		if err := w.AppendReadings(ctx, s.Readings...); err != nil {
			return written, fmt.Errorf("failed to write history for %s: %w", s.Status.DeviceID, err)
		}
		written += len(s.Readings)

		if err := w.PutStatus(ctx, s.Status); err != nil {
			return written, fmt.Errorf("failed to write status for %s: %w", s.Status.DeviceID, err)
		}
		log.Printf("Seeded %s: %d readings, final fill %.0f%%", s.Status.DeviceID, len(s.Readings), s.Status.FillPercentage)
	}
	return written, nil
}

// intIn returns a uniform integer in [lo, hi].
func intIn(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

func floatIn(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ptr(v float64) *float64 { return &v }
