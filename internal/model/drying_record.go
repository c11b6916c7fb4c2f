package model

import "time"

// DryingRecord holds one batch's full drying-cycle data: the sensor inputs,
// the model predictions and the derived results.
//
// ID is a local sequence key and is never shared across systems. UUID is
// assigned at local creation time, is immutable, and is the sole key used
// to match corresponding records between the device and the remote server.
type DryingRecord struct {
	ID   int64  `gorm:"primaryKey"`
	UUID string `gorm:"uniqueIndex;size:36;not null"`

	BatchName string `gorm:"size:150"`

	// Sensor and drying input values
	InitialWeight   float64 `gorm:"not null"`
	Temperature     float64 `gorm:"not null"`
	Humidity        float64 `gorm:"not null"`
	SensorValue     float64 `gorm:"not null"`
	InitialMoisture float64 `gorm:"not null"`
	FinalMoisture   float64 `gorm:"not null"`

	// Prediction results
	DryingTime  string  `gorm:"size:10;not null"`
	FinalWeight float64 `gorm:"not null"`

	// Crop cycle dates
	DatePlanted   *time.Time `gorm:"type:date"`
	DateHarvested *time.Time `gorm:"type:date"`
	DateDried     *time.Time `gorm:"type:date"`
	DueDate       *time.Time `gorm:"type:date"`

	FarmerID   int64  `gorm:"index;not null"`
	FarmerUUID string `gorm:"size:36;index;not null"`

	// Locality references, denormalized at write time.
	BarangayID     *int64
	MunicipalityID *int64

	// Synced is true once the remote store has acknowledged this record.
	// A record with Synced=false has either never been accepted remotely,
	// or was mutated locally after its last successful sync.
	Synced   bool `gorm:"not null;default:false;index"`
	SyncedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Farmer Farmer `gorm:"constraint:OnDelete:CASCADE"`
}
