package fleet

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"smart-bin-backend/internal/metrics"
	"smart-bin-backend/internal/model"
)

// StatusLister is the slice of the store the monitor needs.
type StatusLister interface {
	ListStatuses(ctx context.Context) ([]model.Status, error)
}

// Monitor periodically classifies every bin and publishes the per-state counts.
type Monitor struct {
	statuses     StatusLister
	offlineAfter time.Duration
	now          func() time.Time
	cron         *cron.Cron
}

func NewMonitor(statuses StatusLister, offlineAfter time.Duration) *Monitor {
	return &Monitor{
		statuses:     statuses,
		offlineAfter: offlineAfter,
		now:          time.Now,
		cron:         cron.New(),
	}
}

// Start runs one sweep immediately and then on every tick of schedule.
// The returned stop func waits for a running sweep to finish.
func (m *Monitor) Start(ctx context.Context, schedule string) (stop func(), err error) {
	if err := m.Sweep(ctx); err != nil {
		log.Printf("Initial fleet sweep failed: %v", err)
	}

	_, err = m.cron.AddFunc(schedule, func() {
		if err := m.Sweep(ctx); err != nil {
			log.Printf("Scheduled fleet sweep failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule fleet sweep %q: %w", schedule, err)
	}

	m.cron.Start()
	log.Printf("Fleet monitor scheduled (%s), offline after %s", schedule, m.offlineAfter)
	return func() { <-m.cron.Stop().Done() }, nil
}

// Sweep lists all statuses once and sets the fleet gauges.
func (m *Monitor) Sweep(ctx context.Context) error {
	statuses, err := m.statuses.ListStatuses(ctx)
	if err != nil {
		return fmt.Errorf("failed to list statuses: %w", err)
	}

	for state, n := range CountStates(statuses, m.now(), m.offlineAfter) {
		metrics.FleetBins.WithLabelValues(string(state)).Set(float64(n))
	}
	return nil
}
