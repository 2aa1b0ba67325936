// Package fullness decides when a bin counts as full and when that warrants an alert.
package fullness

// Threshold is the fill percentage at or above which a bin is full.
const Threshold = 95.0

// IsFull reports whether a fill percentage is at or above Threshold.
func IsFull(fillPercentage float64) bool {
	return fillPercentage >= Threshold
}

// RisingEdge reports a not-full to full transition. A sustained full state
// and a transition back to not-full both return false.
func RisingEdge(previous, current bool) bool {
	return !previous && current
}

// Transition pairs the stored state of a bin with the state derived from a new reading.
type Transition struct {
	Previous bool
	Current  bool
}

// Evaluate builds the transition for a new reading. previous is false when the
// device has no status yet, so a first reading that is already full alerts.
func Evaluate(previous bool, fillPercentage float64) Transition {
	return Transition{Previous: previous, Current: IsFull(fillPercentage)}
}

// ShouldAlert reports whether the transition is a rising edge.
func (t Transition) ShouldAlert() bool {
	return RisingEdge(t.Previous, t.Current)
}
