package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"smart-bin-backend/internal/model"
)

// MemoryStore keeps everything in process memory. It is used for local runs
// and tests and follows the same version rules as the database backends.
type MemoryStore struct {
	mu       sync.Mutex
	statuses map[string]model.Status
	history  map[string][]model.Reading
	commands map[string]model.Command
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[string]model.Status),
		history:  make(map[string][]model.Reading),
		commands: make(map[string]model.Command),
	}
}

func (m *MemoryStore) GetStatus(_ context.Context, deviceID string) (model.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[deviceID]
	if !ok {
		return model.Status{}, ErrNotFound
	}
	return status, nil
}

func (m *MemoryStore) SaveStatus(_ context.Context, status model.Status, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.statuses[status.DeviceID]
	switch {
	case !ok && expectedVersion != 0:
		return ErrVersionConflict
	case ok && current.Version != expectedVersion:
		return ErrVersionConflict
	}

	status.Version = expectedVersion + 1
	m.statuses[status.DeviceID] = status
	return nil
}

func (m *MemoryStore) PutStatus(_ context.Context, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Version = m.statuses[status.DeviceID].Version + 1
	m.statuses[status.DeviceID] = status
	return nil
}

func (m *MemoryStore) ListStatuses(_ context.Context) ([]model.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]model.Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].DeviceID < statuses[j].DeviceID })
	return statuses, nil
}

func (m *MemoryStore) AppendReadings(_ context.Context, readings ...model.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range readings {
		m.history[r.DeviceID] = append(m.history[r.DeviceID], r)
	}
	return nil
}

func (m *MemoryStore) RecentReadings(_ context.Context, deviceID string, limit int) ([]model.Reading, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	m.mu.Lock()
	readings := append([]model.Reading(nil), m.history[deviceID]...)
	m.mu.Unlock()

	sortByTimestamp(readings)
	if len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}
	return readings, nil
}

func (m *MemoryStore) ReadingsSince(_ context.Context, since time.Time) ([]model.Reading, error) {
	m.mu.Lock()
	var readings []model.Reading
	for _, rs := range m.history {
		for _, r := range rs {
			if !r.Timestamp.Before(since) {
				readings = append(readings, r)
			}
		}
	}
	m.mu.Unlock()

	sortByTimestamp(readings)
	return readings, nil
}

func (m *MemoryStore) PutCommand(_ context.Context, cmd model.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands[cmd.DeviceID] = cmd
	return nil
}

func (m *MemoryStore) TakeCommand(_ context.Context, deviceID string) (model.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, ok := m.commands[deviceID]
	if !ok {
		return model.Command{}, ErrNotFound
	}
	delete(m.commands, deviceID)
	return cmd, nil
}

func sortByTimestamp(readings []model.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
}
