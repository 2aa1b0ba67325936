package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Bins []BinSubscription `gorm:"foreignKey:Endpoint;constraint:OnDelete:CASCADE"`
}

// BinSubscription maps a push endpoint to a bin it wants full alerts for.
type BinSubscription struct {
	Endpoint string `gorm:"primaryKey"`
	DeviceID string `gorm:"primaryKey;size:64;index"`
}

func (BinSubscription) TableName() string {
	return "subscription_bin_mapping"
}
