package model

import "time"

// PushSubscription holds the information for a browser push subscription,
// tied to the farmer who registered it.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	FarmerID  int64     `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
