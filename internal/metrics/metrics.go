package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Accepted readings, labeled by bin
var ReadingsIngested = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smartbin_readings_ingested_total",
		Help: "The total number of sensor readings appended to history",
	},
	[]string{"device_id"},
)

// Rising-edge alerts by delivery result (sent, failed)
var Alerts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smartbin_alerts_total",
		Help: "Full-bin alerts by delivery result",
	},
	[]string{"result"},
)

// Command polls by outcome (delivered, none)
var CommandChecks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smartbin_command_checks_total",
		Help: "Device command polls by outcome",
	},
	[]string{"result"},
)

var StatusConflicts = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "smartbin_status_conflicts_total",
		Help: "Status writes that lost an optimistic version check and were retried",
	},
)

var FillLevel = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "smartbin_fill_percentage",
		Help: "Distribution of reported fill levels",
		// 95 is the full threshold
		Buckets: []float64{10, 25, 50, 75, 90, 95, 100},
	},
	[]string{"device_id"},
)

// Bins per fleet state (active, full, offline), refreshed by the fleet sweep
var FleetBins = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "smartbin_fleet_bins",
		Help: "Number of bins in each fleet state",
	},
	[]string{"state"},
)

// ObserveReading records an accepted reading.
func ObserveReading(deviceID string, fill float64) {
	ReadingsIngested.WithLabelValues(deviceID).Inc()
	FillLevel.WithLabelValues(deviceID).Observe(fill)
}
