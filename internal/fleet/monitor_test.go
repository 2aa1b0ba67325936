package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-bin-backend/internal/metrics"
	"smart-bin-backend/internal/model"
)

type staticLister struct {
	statuses []model.Status
	err      error
}

func (s staticLister) ListStatuses(context.Context) ([]model.Status, error) {
	return s.statuses, s.err
}

func TestMonitor_Sweep(t *testing.T) {
	lister := staticLister{statuses: []model.Status{
		{DeviceID: "a", LastUpdated: now, IsFull: true},
		{DeviceID: "b", LastUpdated: now},
		{DeviceID: "c", LastUpdated: now},
		{DeviceID: "d", LastUpdated: now.Add(-time.Hour)},
	}}

	m := NewMonitor(lister, 5*time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Sweep(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FleetBins.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FleetBins.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FleetBins.WithLabelValues("offline")))
}

func TestMonitor_SweepError(t *testing.T) {
	m := NewMonitor(staticLister{err: errors.New("db down")}, time.Minute)
	err := m.Sweep(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestMonitor_StartRejectsBadSchedule(t *testing.T) {
	m := NewMonitor(staticLister{}, time.Minute)
	_, err := m.Start(context.Background(), "not a schedule")
	assert.Error(t, err)

	stop, err := m.Start(context.Background(), "@every 1h")
	require.NoError(t, err)
	stop()
}
