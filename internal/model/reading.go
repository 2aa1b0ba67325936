package model

import "time"

// Reading is a single sensor sample appended to a bin's history log.
// The timestamp is part of the key so bin_history can be partitioned by time.
type Reading struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id" dynamodbav:"id"`
	DeviceID       string    `gorm:"size:64;not null;index:idx_bin_history_device_ts,priority:1" json:"device_id" dynamodbav:"device_id"`
	FillPercentage float64   `gorm:"not null" json:"fill_percentage" dynamodbav:"fill_percentage"`
	TrashLevelCM   *float64  `json:"trash_level_cm,omitempty" dynamodbav:"trash_level_cm,omitempty"`
	TempC          *float64  `json:"temp_c,omitempty" dynamodbav:"temp_c,omitempty"`
	HumidityPct    *float64  `json:"humidity_pct,omitempty" dynamodbav:"humidity_pct,omitempty"`
	Lat            float64   `gorm:"not null" json:"lat" dynamodbav:"lat"`
	Lon            float64   `gorm:"not null" json:"lon" dynamodbav:"lon"`
	Timestamp      time.Time `gorm:"primaryKey;not null;index:idx_bin_history_device_ts,priority:2" json:"timestamp" dynamodbav:"timestamp,unixtime"`
}

// TableName keeps the collection name used by the devices and dashboards.
func (Reading) TableName() string {
	return "bin_history"
}
