package model

import "time"

// Status is the latest known state of a bin (hot table, one row per device).
type Status struct {
	DeviceID       string    `gorm:"primaryKey;size:64" json:"device_id" dynamodbav:"device_id"`
	FillPercentage float64   `gorm:"not null" json:"fill_percentage" dynamodbav:"fill_percentage"`
	IsFull         bool      `gorm:"not null" json:"is_full" dynamodbav:"is_full"`
	TempC          *float64  `json:"temp_c" dynamodbav:"temp_c"`
	HumidityPct    *float64  `json:"humidity_pct" dynamodbav:"humidity_pct"`
	Lat            float64   `gorm:"not null" json:"lat" dynamodbav:"lat"`
	Lon            float64   `gorm:"not null" json:"lon" dynamodbav:"lon"`
	LastUpdated    time.Time `gorm:"not null" json:"last_updated" dynamodbav:"last_updated"`

	// Version is bumped on every write; writers compare-and-swap on it.
	Version int64 `gorm:"not null;default:0" json:"version" dynamodbav:"version"`
}

func (Status) TableName() string {
	return "bin_status"
}
