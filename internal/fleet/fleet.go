// Package fleet derives dashboard views from bin statuses and history:
// online state, last-seen text, risk index, time-to-full and fleet averages.
package fleet

import (
	"fmt"
	"math"
	"time"

	"smart-bin-backend/internal/model"
)

type State string

const (
	StateActive  State = "active"
	StateFull    State = "full"
	StateOffline State = "offline"
)

// States lists every state, for gauges that must report zero counts.
var States = []State{StateActive, StateFull, StateOffline}

const (
	// FullTrashLevelCM is the sensor-to-trash distance at which a bin counts as full.
	FullTrashLevelCM = 5.0
	// MinReadingsForETA is the shortest history an estimate is made from.
	MinReadingsForETA = 5
)

// Classify returns offline when the bin has not reported within offlineAfter,
// otherwise full or active.
func Classify(s model.Status, now time.Time, offlineAfter time.Duration) State {
	if s.LastUpdated.IsZero() || now.Sub(s.LastUpdated) > offlineAfter {
		return StateOffline
	}
	if s.IsFull {
		return StateFull
	}
	return StateActive
}

// TimeAgo renders the age of last as "12s ago", "5m ago", "3h ago" or "2d ago".
func TimeAgo(last, now time.Time) string {
	if last.IsZero() {
		return "Never"
	}

	secs := int64(now.Sub(last) / time.Second)
	mins := secs / 60
	hours := mins / 60
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	default:
		return fmt.Sprintf("%dd ago", hours/24)
	}
}

// RiskIndex weighs fill (50%), humidity (30%) and temperature relative to
// 50°C (20%) into a 0-100 score.
func RiskIndex(fill, humidityPct, tempC float64) int {
	return int(math.Round(fill*0.5 + humidityPct*0.3 + (tempC/50)*100*0.2))
}

func RiskLevel(index int) string {
	switch {
	case index < 40:
		return "Low"
	case index < 75:
		return "Medium"
	default:
		return "High"
	}
}

// Estimate is the projected time until a bin is full.
type Estimate struct {
	// Available is false when there is not enough history.
	Available bool `json:"available"`
	// Stable means the trash level is not rising.
	Stable        bool `json:"stable"`
	MinutesToFull int  `json:"minutes_to_full,omitempty"`
}

// EstimateTimeToFull extrapolates the trash level trend between the first and
// last of readings (oldest first) down to FullTrashLevelCM.
func EstimateTimeToFull(readings []model.Reading) Estimate {
	if len(readings) < MinReadingsForETA {
		return Estimate{}
	}

	first, last := readings[0], readings[len(readings)-1]
	if first.TrashLevelCM == nil || last.TrashLevelCM == nil {
		return Estimate{Available: true, Stable: true}
	}

	minutes := last.Timestamp.Sub(first.Timestamp).Minutes()
	drop := *first.TrashLevelCM - *last.TrashLevelCM
	if drop <= 0 || minutes <= 0 {
		return Estimate{Available: true, Stable: true}
	}

	rate := drop / minutes
	remaining := *last.TrashLevelCM - FullTrashLevelCM
	return Estimate{
		Available:     true,
		MinutesToFull: int(math.Abs(math.Round(remaining / rate))),
	}
}

// Summary is the top-of-dashboard fleet overview.
type Summary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Alerts    int `json:"alerts"`
	Offline   int `json:"offline"`
	HealthPct int `json:"health_pct"`
}

// Summarize counts online bins and full bins. Health is the share of bins
// online. A full bin that went offline still counts as an alert.
func Summarize(statuses []model.Status, now time.Time, offlineAfter time.Duration) Summary {
	sum := Summary{Total: len(statuses)}
	for _, s := range statuses {
		if Classify(s, now, offlineAfter) == StateOffline {
			sum.Offline++
		} else {
			sum.Active++
		}
		if s.IsFull {
			sum.Alerts++
		}
	}
	if sum.Total > 0 {
		sum.HealthPct = int(math.Round(float64(sum.Active*100) / float64(sum.Total)))
	}
	return sum
}

// CountStates returns the number of bins per state, with every state present.
func CountStates(statuses []model.Status, now time.Time, offlineAfter time.Duration) map[State]int {
	counts := make(map[State]int, len(States))
	for _, st := range States {
		counts[st] = 0
	}
	for _, s := range statuses {
		counts[Classify(s, now, offlineAfter)]++
	}
	return counts
}

// AverageFill returns the mean fill per device over readings.
func AverageFill(readings []model.Reading) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range readings {
		sums[r.DeviceID] += r.FillPercentage
		counts[r.DeviceID]++
	}

	avg := make(map[string]float64, len(sums))
	for id, total := range sums {
		avg[id] = total / float64(counts[id])
	}
	return avg
}
