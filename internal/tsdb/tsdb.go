// Package tsdb mirrors bin readings into InfluxDB for long-range charts.
package tsdb

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"smart-bin-backend/internal/model"
)

// Measurement is the InfluxDB measurement readings are written to.
const Measurement = "bin_readings"

// PointWriter is satisfied by influxdb2's blocking write API.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer writes one point per reading.
type Writer struct {
	client influxdb2.Client
	api    PointWriter
	bucket string
}

// NewWriter connects to InfluxDB and writes into org/bucket.
func NewWriter(url, token, org, bucket string) *Writer {
	client := influxdb2.NewClient(url, token)
	return &Writer{
		client: client,
		api:    client.WriteAPIBlocking(org, bucket),
		bucket: bucket,
	}
}

// NewWriterWithAPI wraps an existing write API.
func NewWriterWithAPI(api PointWriter, bucket string) *Writer {
	return &Writer{api: api, bucket: bucket}
}

func (w *Writer) PublishReading(ctx context.Context, reading model.Reading) error {
	if err := w.api.WritePoint(ctx, ReadingPoint(reading)); err != nil {
		return fmt.Errorf("error writing to InfluxDB bucket %s: %w", w.bucket, err)
	}
	return nil
}

func (w *Writer) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// ReadingPoint builds the point for a reading. Optional sensor values are
// only written when present.
func ReadingPoint(r model.Reading) *write.Point {
	fields := map[string]interface{}{
		"fill_percentage": r.FillPercentage,
		"lat":             r.Lat,
		"lon":             r.Lon,
	}
	if r.TrashLevelCM != nil {
		fields["trash_level_cm"] = *r.TrashLevelCM
	}
	if r.TempC != nil {
		fields["temp_c"] = *r.TempC
	}
	if r.HumidityPct != nil {
		fields["humidity_pct"] = *r.HumidityPct
	}

	return influxdb2.NewPoint(
		Measurement,
		map[string]string{"device_id": r.DeviceID},
		fields,
		r.Timestamp,
	)
}
