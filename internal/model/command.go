package model

import "time"

// Command is a pending one-shot instruction for a device. At most one exists per device.
type Command struct {
	DeviceID  string    `gorm:"primaryKey;size:64" json:"device_id" dynamodbav:"device_id"`
	Action    string    `gorm:"size:64;not null" json:"action" dynamodbav:"action"`
	CreatedAt time.Time `gorm:"not null" json:"created_at" dynamodbav:"created_at"`
}
