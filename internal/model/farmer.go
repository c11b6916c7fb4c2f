package model

import "time"

// Farmer owns zero or more drying records. It is identified locally by ID
// and globally by UUID; the UUID is assigned by the remote authority and
// never changes once set.
//
// A Farmer row may be created lazily on first successful remote login, when
// the device has never seen this farmer before.
type Farmer struct {
	ID           int64  `gorm:"primaryKey"`
	UUID         string `gorm:"uniqueIndex;size:36;not null"`
	Username     string `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string `gorm:"size:150;not null"`
	FullName     string `gorm:"size:150;not null"`
	BarangayID   *int64 `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Records []DryingRecord `gorm:"foreignKey:FarmerID"`
}
