package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-bin-backend/internal/model"
)

func TestMemoryStore_SaveStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	assert.ErrorIs(t, m.SaveStatus(ctx, model.Status{DeviceID: "b"}, 2), ErrVersionConflict, "missing row with non-zero version")
	require.NoError(t, m.SaveStatus(ctx, model.Status{DeviceID: "b", FillPercentage: 10}, 0))
	assert.ErrorIs(t, m.SaveStatus(ctx, model.Status{DeviceID: "b"}, 0), ErrVersionConflict)
	require.NoError(t, m.SaveStatus(ctx, model.Status{DeviceID: "b", FillPercentage: 20}, 1))

	got, err := m.GetStatus(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 20.0, got.FillPercentage)
}

func TestMemoryStore_ConcurrentSaveStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.SaveStatus(ctx, model.Status{DeviceID: "b"}, 0) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_Commands(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.TakeCommand(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.PutCommand(ctx, model.Command{DeviceID: "b", Action: "RESET"}))
	cmd, err := m.TakeCommand(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "RESET", cmd.Action)

	_, err = m.TakeCommand(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Readings(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Appended out of order on purpose.
	require.NoError(t, m.AppendReadings(ctx,
		model.Reading{DeviceID: "b", FillPercentage: 3, Timestamp: base.Add(3 * time.Hour)},
		model.Reading{DeviceID: "b", FillPercentage: 1, Timestamp: base.Add(1 * time.Hour)},
		model.Reading{DeviceID: "b", FillPercentage: 2, Timestamp: base.Add(2 * time.Hour)},
		model.Reading{DeviceID: "c", FillPercentage: 9, Timestamp: base},
	))

	recent, err := m.RecentReadings(ctx, "b", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 2.0, recent[0].FillPercentage)
	assert.Equal(t, 3.0, recent[1].FillPercentage)

	since, err := m.ReadingsSince(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, since, 3)
	assert.Equal(t, 1.0, since[0].FillPercentage)
}
