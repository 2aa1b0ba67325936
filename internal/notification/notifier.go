package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Alert describes a bin that has just become full.
type Alert struct {
	DeviceID       string
	FillPercentage float64
	Lat            float64
	Lon            float64
}

// Notifier delivers a full-bin alert to one channel.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Notify(context.Context, Alert) error { return nil }

// FormatFill renders a fill level without trailing zeros (96, 96.5).
func FormatFill(fill float64) string {
	return strconv.FormatFloat(fill, 'f', -1, 64)
}

// MapsURL links to the bin location.
func MapsURL(lat, lon float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s",
		strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lon, 'f', -1, 64))
}

// FullAlertMessage is the Markdown chat text sent when a bin becomes full.
func FullAlertMessage(alert Alert) string {
	return "🚨 *BIN FULL ALERT* 🚨\n\n" +
		fmt.Sprintf("🗑 Bin ID: `%s`\n", alert.DeviceID) +
		fmt.Sprintf("📊 Fill Level: %s%%\n", FormatFill(alert.FillPercentage)) +
		fmt.Sprintf("📍 Location: %s\n\n", MapsURL(alert.Lat, alert.Lon)) +
		"Please schedule collection."
}
